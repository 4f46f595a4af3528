package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gookit/color"
	"github.com/jwebster45206/escape-engine/pkg/room"
	"golang.org/x/term"
)

var (
	okStyle   = color.Style{color.FgGreen, color.OpBold}
	failStyle = color.Style{color.FgRed, color.OpBold}
	itemStyle = color.Style{color.FgYellow}
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <room.yaml|room.json|dir> [...]\n", os.Args[0])
		os.Exit(1)
	}

	color.Enable = term.IsTerminal(int(os.Stdout.Fd()))

	files, err := collect(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	failed := 0
	for _, filename := range files {
		validator := &RoomValidator{}
		if err := validator.validateFile(filename); err != nil {
			report(os.Stdout, filename, err)
			failed++
			continue
		}
		fmt.Fprintf(os.Stdout, "%s %s\n", okStyle.Sprint("ok"), filename)
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d room file(s) failed validation\n", failed, len(files))
		os.Exit(1)
	}
	fmt.Println("All room files are valid!")
}

// collect expands directories into the room files they contain
func collect(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if _, err := room.FormatFor(e.Name()); err == nil {
				files = append(files, filepath.Join(arg, e.Name()))
			}
		}
	}
	if len(files) == 0 {
		return nil, errors.New("no room files found")
	}
	return files, nil
}

func report(w io.Writer, filename string, err error) {
	fmt.Fprintf(w, "%s %s\n", failStyle.Sprint("FAIL"), filename)

	var verr *room.ValidationError
	if errors.As(err, &verr) {
		for _, p := range verr.Problems {
			fmt.Fprintf(w, "  - %s\n", itemStyle.Sprint(p))
		}
		return
	}
	fmt.Fprintf(w, "  - %s\n", itemStyle.Sprint(err.Error()))
}

// RoomValidator checks file naming on top of the definition's own rules.
type RoomValidator struct {
	errors []string
}

func (v *RoomValidator) validateFile(filename string) error {
	baseName := filepath.Base(filename)
	format, err := room.FormatFor(baseName)
	if err != nil {
		return fmt.Errorf("room file must have .yaml, .yml or .json extension: %s", baseName)
	}

	nameWithoutExt := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	if !isValidRoomFilename(nameWithoutExt) {
		return fmt.Errorf("room filename '%s' must be lowercase snake_case (e.g., my_room.yaml, not my-room.yaml or MyRoom.yaml)", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	v.errors = nil

	def, err := room.Parse(data, format)
	if err != nil {
		return fmt.Errorf("file %s failed strict %s unmarshaling: %w", filename, format, err)
	}

	if len(def.PuzzleIDs()) == 0 {
		v.addError("room has no puzzles")
	}

	if err := def.Validate(); err != nil {
		var verr *room.ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		v.errors = append(v.errors, verr.Problems...)
	}

	if len(v.errors) > 0 {
		return &room.ValidationError{Problems: v.errors}
	}
	return nil
}

func (v *RoomValidator) addError(msg string) {
	v.errors = append(v.errors, msg)
}

var validFilenameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)

func isValidRoomFilename(name string) bool {
	// Allow 'x.' prefix for experimental rooms
	name = strings.TrimPrefix(name, "x.")
	return validFilenameRegex.MatchString(name)
}
