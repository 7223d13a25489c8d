package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"github.com/hashicorp/hcl/v2"

	"github.com/roach88/desflat/internal/compiler"
	"github.com/roach88/desflat/internal/elab"
	"github.com/roach88/desflat/internal/ir"
	"github.com/roach88/desflat/internal/partition"
	"github.com/roach88/desflat/internal/syntax"
)

// LoadResult contains a model merged from one or more input files.
type LoadResult struct {
	Model *ir.Model
	Files []string // input files in merge order
}

// Source names the result for run history: the single file, or the files
// joined with commas.
func (r *LoadResult) Source() string {
	return strings.Join(r.Files, ",")
}

// LoadError represents an error that occurred before the model reached the
// elaborator: missing files, unsupported extensions, parse failures.
type LoadError struct {
	Code    string
	Message string
	Pos     ir.Pos
	Err     error
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Error code constants - unified across all CLI commands.
// Elaboration failures use the elaborator's own codes (ARITY, ...).
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No model files found
	ErrCodeLoadFailed  = "E004" // Parse or decode failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeUnsupported = "E006" // Unsupported file extension
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeStoreFailed = "E008" // Run history error
	ErrCodeCSVFailed   = "E009" // Node or matrix CSV error
	ErrCodePartition   = "E010" // Grouping does not fit the network
)

// modelExtensions lists the input formats by extension.
var modelExtensions = map[string]bool{
	".des": true,
	".cif": true,
	".txt": true,
	".cue": true,
	".hcl": true,
}

// LoadModel reads every path and merges the models in order. A directory
// contributes its model files in lexical order.
func LoadModel(paths []string) (*LoadResult, error) {
	files, err := expandPaths(paths)
	if err != nil {
		return nil, err
	}

	result := &LoadResult{Model: &ir.Model{}, Files: files}
	for _, file := range files {
		m, err := loadFile(file)
		if err != nil {
			return nil, err
		}
		result.Model.Merge(m)
	}
	return result, nil
}

// expandPaths resolves the command-line arguments to model files.
func expandPaths(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: "no model files given"}
	}

	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("model path not found: %s", p), Err: err}
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", p, err), Err: err}
		}
		if !info.IsDir() {
			if !modelExtensions[strings.ToLower(filepath.Ext(p))] {
				return nil, &LoadError{Code: ErrCodeUnsupported, Message: fmt.Sprintf("unsupported model file: %s", p)}
			}
			files = append(files, p)
			continue
		}
		found, err := FindModelFiles(p)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err), Err: err}
		}
		if len(found) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no model files found in %s", p)}
		}
		files = append(files, found...)
	}
	return files, nil
}

// FindModelFiles returns the model files directly inside dir, sorted.
func FindModelFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && modelExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func loadFile(path string) (*ir.Model, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return loadCUE(path)
	case ".hcl":
		m, err := compiler.ParseHCLFile(path)
		if err != nil {
			return nil, convertCompileError(err, path)
		}
		return m, nil
	default:
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading %s: %v", path, err), Err: err}
		}
		m, err := syntax.Parse(path, src)
		if err != nil {
			return nil, convertCompileError(err, path)
		}
		return m, nil
	}
}

// loadCUE builds a single CUE file with the CUE loader and compiles the
// resulting value.
func loadCUE(path string) (*ir.Model, error) {
	cfg := &load.Config{Dir: filepath.Dir(path)}
	instances := load.Instances([]string{"./" + filepath.Base(path)}, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("no CUE instance loaded from %s", path)}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE file: %v", inst.Err), Err: inst.Err}
	}

	value := cuecontext.New().BuildInstance(inst)
	m, err := compiler.CompileModel(value)
	if err != nil {
		return nil, convertCompileError(err, path)
	}
	return m, nil
}

// convertCompileError converts a front-end error to a LoadError with
// position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeLoadFailed,
			Message: compileErr.Message,
			Pos:     compileErr.Position(),
			Err:     err,
		}
	}
	var synErr *syntax.SyntaxError
	if errors.As(err, &synErr) {
		return &LoadError{
			Code:    ErrCodeLoadFailed,
			Message: "syntax error: " + synErr.Message,
			Pos:     synErr.Pos,
			Err:     err,
		}
	}
	var diags hcl.Diagnostics
	if errors.As(err, &diags) && len(diags) > 0 {
		loadErr := &LoadError{
			Code:    ErrCodeLoadFailed,
			Message: diags[0].Summary,
			Err:     err,
		}
		if diags[0].Detail != "" {
			loadErr.Message += ": " + diags[0].Detail
		}
		if r := diags[0].Subject; r != nil {
			loadErr.Pos = ir.Pos{File: r.Filename, Line: r.Start.Line, Column: r.Start.Column}
		}
		return loadErr
	}
	return &LoadError{
		Code:    ErrCodeLoadFailed,
		Message: fmt.Sprintf("%s: %v", context, err),
		Err:     err,
	}
}

// errorCode returns the code reported for err: the LoadError or elaborator
// code, E001 otherwise.
func errorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	if code := elab.CodeOf(err); code != "" {
		return string(code)
	}
	var partErr *partition.PartitionError
	if errors.As(err, &partErr) {
		return ErrCodePartition
	}
	return ErrCodeGeneric
}

// errorMessage returns err's message without the code prefix.
func errorMessage(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Message
	}
	var elabErr *elab.Error
	if errors.As(err, &elabErr) {
		return elabErr.Message
	}
	return err.Error()
}

// errorPos returns the source position carried by err, if any.
func errorPos(err error) ir.Pos {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Pos
	}
	var elabErr *elab.Error
	if errors.As(err, &elabErr) {
		return elabErr.Pos
	}
	return ir.Pos{}
}
