package inference

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Tensor is a dense float32 tensor.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Runner executes one model on a single input tensor.
type Runner interface {
	Run(ctx context.Context, input Tensor) ([]Tensor, error)
}

// Runtime owns the onnxruntime environment and every loaded session.
type Runtime struct {
	libraryPath string
	threads     int

	initOnce sync.Once
	initErr  error

	mu       sync.Mutex
	sessions map[string]*session
}

// NewRuntime prepares a runtime. Nothing native is touched until Init.
func NewRuntime(libraryPath string, threads int) *Runtime {
	return &Runtime{
		libraryPath: strings.TrimSpace(libraryPath),
		threads:     threads,
		sessions:    make(map[string]*session),
	}
}

// Init loads the shared library and initializes the environment once.
func (r *Runtime) Init() error {
	r.initOnce.Do(func() {
		path := r.libraryPath
		if path == "" {
			path = os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")
		}
		if path != "" {
			ort.SetSharedLibraryPath(path)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			r.initErr = fmt.Errorf("initialize onnxruntime: %w", err)
		}
	})
	return r.initErr
}

// Load returns the session for modelPath, creating it on first use.
func (r *Runtime) Load(modelPath string) (Runner, error) {
	if err := r.Init(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[modelPath]; ok {
		return s, nil
	}
	s, err := newSession(modelPath, r.threads)
	if err != nil {
		return nil, err
	}
	r.sessions[modelPath] = s
	return s, nil
}

// Close destroys every session and the environment.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for path, s := range r.sessions {
		if err := s.destroy(); err != nil {
			errs = append(errs, fmt.Errorf("destroy session %s: %w", path, err))
		}
		delete(r.sessions, path)
	}
	if ort.IsInitialized() {
		if err := ort.DestroyEnvironment(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type session struct {
	mu      sync.Mutex
	path    string
	inputs  []string
	outputs []string
	handle  *ort.DynamicAdvancedSession
}

func newSession(modelPath string, threads int) (*session, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("inspect model %s: %w", modelPath, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model %s has no inputs or outputs", modelPath)
	}
	inputNames := []string{inputs[0].Name}
	outputNames := make([]string, len(outputs))
	for i, o := range outputs {
		outputNames[i] = o.Name
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer opts.Destroy()
	if threads > 0 {
		if err := opts.SetIntraOpNumThreads(threads); err != nil {
			return nil, fmt.Errorf("set intra-op threads: %w", err)
		}
	}

	handle, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, opts)
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", modelPath, err)
	}
	return &session{path: modelPath, inputs: inputNames, outputs: outputNames, handle: handle}, nil
}

// Run executes the session. Output tensors are copied out of native memory.
func (s *session) Run(ctx context.Context, input Tensor) ([]Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	in, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return nil, fmt.Errorf("input tensor: %w", err)
	}
	defer in.Destroy()

	outs := make([]ort.Value, len(s.outputs))
	if err := s.handle.Run([]ort.Value{in}, outs); err != nil {
		return nil, fmt.Errorf("run %s: %w", s.path, err)
	}
	defer func() {
		for _, v := range outs {
			if v != nil {
				_ = v.Destroy()
			}
		}
	}()

	result := make([]Tensor, 0, len(outs))
	for i, v := range outs {
		t, ok := v.(*ort.Tensor[float32])
		if !ok {
			return nil, fmt.Errorf("output %s of %s is not float32", s.outputs[i], s.path)
		}
		data := t.GetData()
		copied := make([]float32, len(data))
		copy(copied, data)
		result = append(result, Tensor{Shape: append([]int64(nil), t.GetShape()...), Data: copied})
	}
	return result, nil
}

func (s *session) destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return nil
	}
	err := s.handle.Destroy()
	s.handle = nil
	return err
}
