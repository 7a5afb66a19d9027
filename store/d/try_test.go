package d

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPanicIfErrorNoPanicOnNil(t *testing.T) {
	assert.NotPanics(t, func() { PanicIfError(nil) })
}

func TestPanicIfErrorPanicsOnError(t *testing.T) {
	err := errors.New("boom")
	assert.PanicsWithValue(t, err, func() { PanicIfError(err) })
}
