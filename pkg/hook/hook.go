// Package hook runs user-supplied Tengo scripts around download phases.
package hook

import (
	"sync"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	"github.com/glorpus-work/stacgrab/pkg/errors"
)

// Type represents the download phase a hook runs at.
type Type string

// Supported hook types.
const (
	PreDownload  Type = "pre-download"
	PostDownload Type = "post-download"
)

// Context contains information passed to hooks.
type Context struct {
	OutputDir string
	Requested int
	Retrieved int
	Ratio     float64
	Vars      map[string]interface{}
}

// Executor handles the execution of Tengo hook scripts.
type Executor struct {
	scripts map[Type]string
	mutex   sync.RWMutex
}

// NewExecutor creates a new Tengo script executor.
func NewExecutor() *Executor {
	return &Executor{
		scripts: make(map[Type]string),
	}
}

// AddScript adds or updates a script for the specified hook type.
func (e *Executor) AddScript(hookType Type, script string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.scripts[hookType] = script
}

// HasScript checks if a script of the specified type exists.
func (e *Executor) HasScript(hookType Type) bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	_, ok := e.scripts[hookType]
	return ok
}

// Execute runs the specified hook type with the given context.
func (e *Executor) Execute(hookType Type, ctx Context) error {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	script, exists := e.scripts[hookType]
	if !exists {
		return nil // No script for this hook type
	}

	scriptInstance := tengo.NewScript([]byte(script))
	scriptInstance.SetImports(stdlib.GetModuleMap("fmt", "os", "text", "times"))

	_ = scriptInstance.Add("outputDir", ctx.OutputDir)
	_ = scriptInstance.Add("requested", ctx.Requested)
	_ = scriptInstance.Add("retrieved", ctx.Retrieved)
	_ = scriptInstance.Add("ratio", ctx.Ratio)
	for k, v := range ctx.Vars {
		_ = scriptInstance.Add(k, v)
	}

	compiled, err := scriptInstance.Run()
	if err != nil {
		return errors.Wrapf(errors.ErrHookExecution, "%s: %v", hookType, err)
	}

	// Check for any returned error
	errVar := compiled.Get("err")
	if errVar != nil {
		switch v := errVar.Value().(type) {
		case error:
			return errors.Wrap(errors.ErrHookScript, v.Error())
		case string:
			if v != "" {
				return errors.Wrap(errors.ErrHookScript, v)
			}
		}
	}

	return nil
}
