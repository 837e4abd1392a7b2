package archive

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type toolFailure struct{ output string }

func (e toolFailure) Error() string      { return "tool failed" }
func (e toolFailure) Diagnostic() string { return e.output }

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"nil", nil, http.StatusOK, ""},
		{"validation", &ValidationError{Kind: NoFile}, http.StatusBadRequest, "File not received"},
		{"wrapped validation", fmt.Errorf("ingest: %w", &ValidationError{Kind: UnsupportedType}), http.StatusBadRequest, "File type not allowed"},
		{"invalid hash", &RetrievalError{Kind: InvalidHash}, http.StatusBadRequest, "Hash not recognized"},
		{"invalid rendition", &RetrievalError{Kind: InvalidRendition}, http.StatusBadRequest, "Rendition not recognized"},
		{"not found", &RetrievalError{Kind: NotFound}, http.StatusNotFound, "File not found"},
		{"hashing", fmt.Errorf("%w: disk gone", ErrHashComputation), http.StatusInternalServerError, "hash computation failed: disk gone"},
		{"mkdir", &StorageError{Op: OpMkdir, Path: "/a", Err: errors.New("denied")}, http.StatusInternalServerError, "mkdir /a: denied"},
		{"move", &StorageError{Op: OpMove, Path: "/b", Err: errors.New("denied")}, http.StatusBadRequest, "move /b: denied"},
		{"tool", &StageError{Stage: StageConverting, Err: toolFailure{output: "unoconv: no listener"}}, http.StatusBadRequest, "unoconv: no listener"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, message := StatusOf(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.message, message)
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("resolve: %w", &RetrievalError{Kind: NotFound})))
	assert.False(t, IsNotFound(&RetrievalError{Kind: InvalidHash}))
	assert.False(t, IsNotFound(errors.New("x")))
}

func TestRendition(t *testing.T) {
	r, err := ParseRendition("")
	assert.NoError(t, err)
	assert.Equal(t, Master, r)

	r, err = ParseRendition("1")
	assert.NoError(t, err)
	assert.Equal(t, Usage, r)

	r, err = ParseRendition("2")
	assert.NoError(t, err)
	assert.Equal(t, Thumb, r)

	_, err = ParseRendition("3")
	var re *RetrievalError
	assert.True(t, errors.As(err, &re))
	assert.Equal(t, InvalidRendition, re.Kind)

	hash := "ABC"
	assert.True(t, Master.Matches(hash, "ABC.pdf"))
	assert.True(t, Master.Matches(hash, "ABC.docx"))
	assert.False(t, Master.Matches(hash, "ABC_usage.pdf"))
	assert.False(t, Master.Matches(hash, "ABC_thumb.jpg"))
	assert.True(t, Usage.Matches(hash, "ABC_usage.pdf"))
	assert.False(t, Usage.Matches(hash, "ABC.pdf"))
	assert.True(t, Thumb.Matches(hash, "ABC_thumb.jpg"))
	assert.False(t, Thumb.Matches(hash, "ABCD_thumb.jpg"))
	assert.Equal(t, "usage", Usage.String())
}
