package json

import (
	"errors"

	"github.com/fwojciec/chatstream"
	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned by PathParser for payloads that are not valid JSON.
var ErrInvalidJSON = errors.New("invalid JSON payload")

// DefaultPaths covers the delta shapes of the supported backends.
var DefaultPaths = []string{
	"delta",
	"choices.0.delta.content",
	"delta.text",
	"candidates.0.content.parts.0.text",
}

var _ chatstream.FragmentParser = (*PathParser)(nil)

// PathParser extracts fragments with gjson path expressions. The first path
// that resolves to a JSON string wins.
type PathParser struct {
	paths []string
}

// NewPathParser returns a PathParser trying paths in order, or DefaultPaths
// when none are given.
func NewPathParser(paths ...string) *PathParser {
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	return &PathParser{paths: paths}
}

// ParseFragment implements chatstream.FragmentParser.
func (p *PathParser) ParseFragment(data string) (string, error) {
	if !gjson.Valid(data) {
		return "", ErrInvalidJSON
	}
	for _, r := range gjson.GetMany(data, p.paths...) {
		if r.Type == gjson.String {
			return r.Str, nil
		}
	}
	return "", chatstream.ErrNoFragment
}
