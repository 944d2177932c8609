package n8n

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedNodeType = errors.New("unsupported node type")
	ErrMalformedDocument   = errors.New("malformed n8n document")
)

// UnsupportedNodeTypeError is returned by Import instead of dropping the node.
type UnsupportedNodeTypeError struct {
	Node string
	Type string
}

func (e *UnsupportedNodeTypeError) Error() string {
	return fmt.Sprintf("%s %q on node %q", ErrUnsupportedNodeType, e.Type, e.Node)
}

func (e *UnsupportedNodeTypeError) Unwrap() error {
	return ErrUnsupportedNodeType
}

// MalformedDocumentError lists why a document could not be read.
type MalformedDocumentError struct {
	Problems []string
	Err      error
}

func (e *MalformedDocumentError) Error() string {
	if len(e.Problems) == 0 && e.Err != nil {
		return fmt.Sprintf("%s: %v", ErrMalformedDocument, e.Err)
	}

	return fmt.Sprintf("%s: %s", ErrMalformedDocument, strings.Join(e.Problems, "; "))
}

func (e *MalformedDocumentError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedDocument}
	}

	return []error{ErrMalformedDocument, e.Err}
}

func malformed(format string, args ...any) *MalformedDocumentError {
	return &MalformedDocumentError{Problems: []string{fmt.Sprintf(format, args...)}}
}

func IsUnsupportedNodeType(err error) bool {
	return errors.Is(err, ErrUnsupportedNodeType)
}

func IsMalformedDocument(err error) bool {
	return errors.Is(err, ErrMalformedDocument)
}
