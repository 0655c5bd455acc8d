package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// TerminalPicker asks the user for a diary folder path, standing in for a
// platform folder-picker dialog.
type TerminalPicker struct {
	reader *bufio.Reader
}

func NewTerminalPicker(reader *bufio.Reader) *TerminalPicker {
	return &TerminalPicker{reader: reader}
}

func (p *TerminalPicker) Pick(ctx context.Context) (string, error) {
	path, err := getSimpleText(p.reader, "Enter a folder for your diary", os.Stdout)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("no folder chosen")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o770); err != nil {
		return "", err
	}
	return abs, nil
}
