package config

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

var (
	currentCharMapLock sync.RWMutex
	currentCharMap     = charmap.Windows1252
)

// FindEncoding resolves a charmap by the name it reports from String().
func FindEncoding(name string) (*charmap.Charmap, error) {
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			if cm.String() == name {
				return cm, nil
			}
		}
	}
	return nil, errors.Errorf("Failed to find encoding %q", name)
}

func SetEncoding(name string) error {
	cm, err := FindEncoding(name)
	if err != nil {
		return err
	}
	currentCharMapLock.Lock()
	currentCharMap = cm
	currentCharMapLock.Unlock()
	return nil
}

func ListEncodings() []string {
	list := make([]string, 0)
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			list = append(list, cm.String())
		}
	}
	return list
}

func GetEncoding() *charmap.Charmap {
	currentCharMapLock.RLock()
	defer currentCharMapLock.RUnlock()
	return currentCharMap
}
