package db

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestConnectRejectsEmptyTarget(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	_, err := ConnectPostgres("", logger)
	assert.ErrorContains(t, err, "cannot be empty")

	_, err = ConnectMySQL("", logger)
	assert.ErrorContains(t, err, "cannot be empty")
}
