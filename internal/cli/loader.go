package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue/token"

	"github.com/roach88/deduce/internal/compiler"
	"github.com/roach88/deduce/internal/ir"
)

// LoadResult contains the programs compiled from a file or directory.
type LoadResult struct {
	Programs  []*compiler.Program
	Files     []string // one per program
	FileCount int
}

// Statements returns every statement of every program, in load order.
func (r *LoadResult) Statements() []ir.Statement {
	var out []ir.Statement
	for _, p := range r.Programs {
		out = append(out, p.Statements()...)
	}
	return out
}

// LoadError represents an error that occurred while loading programs.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
	Err     error
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadPrograms compiles a CUE program file, or every *.cue file under a
// directory in path order. The first file that fails to compile stops the
// load.
func LoadPrograms(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", path, err)}
	}

	files := []string{path}
	if info.IsDir() {
		files, err = FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
	}

	result := &LoadResult{FileCount: len(files)}
	for _, f := range files {
		p, err := compiler.CompileFile(f)
		if err != nil {
			return nil, convertCompileError(err, f)
		}
		if p.Name == "" {
			p.Name = filepath.Base(f)
		}
		result.Programs = append(result.Programs, p)
		result.Files = append(result.Files, f)
	}
	return result, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	slices.Sort(files)
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, file string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapCompileErrorToCode(compileErr),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
			Err:     err,
		}
	}
	return &LoadError{
		Code:    ErrCodeLoadFailed,
		Message: fmt.Sprintf("%s: %v", file, err),
		Err:     err,
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // Program file could not be read
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeDatabase    = "E008" // Journal database error
	ErrCodeBadQuery    = "E009" // --ask query could not be decoded
)

// MapCompileErrorToCode maps a compiler error to an error code. Statement
// decode errors carry the engine's code; CUE errors map to E006.
func MapCompileErrorToCode(err *compiler.CompileError) string {
	if code := ir.CodeOf(err); code != "" {
		return string(code)
	}
	switch err.Field {
	case "cue":
		return ErrCodeBuildFailed
	case "program":
		return compiler.ErrEmptyProgram
	default:
		return ErrCodeGeneric
	}
}
