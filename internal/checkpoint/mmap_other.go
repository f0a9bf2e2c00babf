//go:build !unix

package checkpoint

import "os"

func openData(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	return data, false, nil
}

func closeData(_ []byte, _ bool) error { return nil }
