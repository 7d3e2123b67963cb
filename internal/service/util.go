package service

import (
	"bytes"
	"io"

	"go.uber.org/zap"
)

func zapErr(err error) zap.Field {
	return zap.Error(err)
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
