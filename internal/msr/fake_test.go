package msr

import (
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const fakeDevicePath = "fake/cpu/%d/msr"

// fakeRegisterFile serves a queue of values per register. Each read pops the
// next value; the last one repeats.
type fakeRegisterFile struct {
	values  map[Register][]uint64
	offset  int64
	readErr map[Register]error
	reads   map[Register]int
	closed  bool
}

func newFakeRegisterFile(values map[Register][]uint64) *fakeRegisterFile {
	return &fakeRegisterFile{
		values:  values,
		readErr: make(map[Register]error),
		reads:   make(map[Register]int),
	}
}

func (f *fakeRegisterFile) Seek(offset int64, whence int) (int64, error) {
	if whence != io.SeekStart {
		return 0, fmt.Errorf("unexpected whence %d", whence)
	}
	f.offset = offset
	return offset, nil
}

func (f *fakeRegisterFile) Read(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	reg := Register(f.offset)
	if err := f.readErr[reg]; err != nil {
		return 0, err
	}
	queue, ok := f.values[reg]
	if !ok || len(queue) == 0 {
		return 0, io.EOF
	}
	n := f.reads[reg]
	if n >= len(queue) {
		n = len(queue) - 1
	}
	f.reads[reg]++

	var buf [registerSize]byte
	binary.LittleEndian.PutUint64(buf[:], queue[n])
	copied := copy(p, buf[:])
	f.offset += int64(copied)
	return copied, nil
}

func (f *fakeRegisterFile) Close() error {
	f.closed = true
	return nil
}

// fakeMachine wires topology files on disk to in-memory register devices.
type fakeMachine struct {
	t           *testing.T
	topology    string
	files       map[int]*fakeRegisterFile
	openErr     map[int]error
	mu          sync.Mutex
	openedPaths []string
}

func newFakeMachine(t *testing.T) *fakeMachine {
	t.Helper()
	return &fakeMachine{
		t:        t,
		topology: filepath.Join(t.TempDir(), "cpu%d", "physical_package_id"),
		files:    make(map[int]*fakeRegisterFile),
		openErr:  make(map[int]error),
	}
}

// addCPU registers a CPU with a topology file and a register device.
func (m *fakeMachine) addCPU(cpu int, packageContent string, values map[Register][]uint64) *fakeRegisterFile {
	m.t.Helper()
	m.writeTopology(cpu, packageContent)
	f := newFakeRegisterFile(values)
	m.files[cpu] = f
	return f
}

func (m *fakeMachine) writeTopology(cpu int, content string) {
	m.t.Helper()
	path := fmt.Sprintf(m.topology, cpu)
	require.NoError(m.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(m.t, os.WriteFile(path, []byte(content), 0o644))
}

func (m *fakeMachine) open(path string) (RegisterFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openedPaths = append(m.openedPaths, path)

	var cpu int
	if _, err := fmt.Sscanf(path, fakeDevicePath, &cpu); err != nil {
		return nil, err
	}
	if err := m.openErr[cpu]; err != nil {
		return nil, &fs.PathError{Op: "open", Path: path, Err: err}
	}
	f, ok := m.files[cpu]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return f, nil
}

func (m *fakeMachine) options(extra ...Option) []Option {
	return append([]Option{
		WithDevicePath(fakeDevicePath),
		WithTopologyPath(m.topology),
		WithOpener(m.open),
	}, extra...)
}

// withSleep replaces the sampling delay
func withSleep(fn func(time.Duration)) Option {
	return func(o *options) {
		o.sleep = fn
	}
}

func noSleep() Option {
	return withSleep(func(time.Duration) {})
}

func energyValues(unit uint64, core, pkg []uint64) map[Register][]uint64 {
	return map[Register][]uint64{
		RegPowerUnit:     {unit},
		RegCoreEnergy:    core,
		RegPackageEnergy: pkg,
	}
}

var errDeviceGone = stderrors.New("no such device or address")
