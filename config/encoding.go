package config

import (
	"io"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// nil means input is already UTF-8
var currentCharMap *charmap.Charmap

func SetEncoding(name string) error {
	if name == "" || name == "UTF-8" {
		currentCharMap = nil
		return nil
	}
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			if cm.String() == name {
				currentCharMap = cm
				return nil
			}
		}
	}
	return errors.Errorf("Failed to find encoding %q", name)
}

func ListEncodings() []string {
	list := []string{"UTF-8"}
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			list = append(list, cm.String())
		}
	}
	return list
}

func GetEncoding() *charmap.Charmap {
	return currentCharMap
}

func EncodingName() string {
	if currentCharMap == nil {
		return "UTF-8"
	}
	return currentCharMap.String()
}

// DecodeReader wraps r so that it yields UTF-8 text.
func DecodeReader(r io.Reader) io.Reader {
	if currentCharMap == nil {
		return r
	}
	return transform.NewReader(r, currentCharMap.NewDecoder())
}
