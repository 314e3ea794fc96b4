package util

import "errors"

var (
	ErrNoExtractableText = errors.New("no extractable text found in PDF")

	ErrMissingColumns     = errors.New("source is missing required columns")
	ErrUnsupportedSource  = errors.New("unsupported source format")
	ErrUnsupportedStore   = errors.New("unsupported graph store url")
	ErrTransientStore     = errors.New("transient store error")
	ErrInvalidEntityType  = errors.New("invalid entity type")
	ErrInvalidRelation    = errors.New("invalid relationship type")
	ErrBuildRunNotTracked = errors.New("graph store does not track build runs")
	ErrBuildRunNotFound   = errors.New("build run not found")
)
