package msr

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"codeberg.org/mutker/amdpower/internal/errors"
)

// RegisterFile is a per-CPU register device: seek to the register address,
// then read eight little-endian bytes.
type RegisterFile interface {
	io.ReadSeeker
	io.Closer
}

// Core owns the register device of one logical CPU together with the id of
// the physical package the CPU belongs to. A Core is not safe for concurrent
// use: every read moves the file offset.
type Core struct {
	cpu       int
	packageID uint32
	file      RegisterFile
}

// OpenCore reads the package id of cpu and opens its register device
// read-only.
func OpenCore(cpu int, opts ...Option) (*Core, error) {
	return openCore(cpu, newOptions(opts...))
}

func openCore(cpu int, o *options) (*Core, error) {
	packageID, err := readPackageID(fmt.Sprintf(o.topologyPath, cpu))
	if err != nil {
		return nil, err
	}

	file, err := o.opener(fmt.Sprintf(o.devicePath, cpu))
	if err != nil {
		return nil, classify(err)
	}

	return &Core{
		cpu:       cpu,
		packageID: packageID,
		file:      file,
	}, nil
}

func readPackageID(path string) (uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, classify(err)
	}

	// sysfs attributes may carry NUL padding after the newline
	text := strings.TrimRightFunc(string(data), func(r rune) bool {
		return r == 0 || unicode.IsSpace(r)
	})
	text = strings.TrimSpace(text)
	// a single explicit sign is valid decimal
	text = strings.TrimPrefix(text, "+")

	id, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		return 0, errors.New().Wrap(ErrInvalidPackage, err)
	}

	return uint32(id), nil
}

// CPU returns the logical CPU number
func (c *Core) CPU() int {
	return c.cpu
}

// PackageID returns the physical package the CPU belongs to
func (c *Core) PackageID() uint32 {
	return c.packageID
}

// ReadRegister returns the 64-bit value of reg.
func (c *Core) ReadRegister(reg Register) (uint64, error) {
	if _, err := c.file.Seek(int64(reg), io.SeekStart); err != nil {
		return 0, classify(fmt.Errorf("seek to %s (0x%x) on cpu %d: %w", reg, uint32(reg), c.cpu, err))
	}

	var buf [registerSize]byte
	if _, err := io.ReadFull(c.file, buf[:]); err != nil {
		return 0, classify(fmt.Errorf("read %s (0x%x) on cpu %d: %w", reg, uint32(reg), c.cpu, err))
	}

	return binary.LittleEndian.Uint64(buf[:]), nil
}

// Close releases the register device
func (c *Core) Close() error {
	if err := c.file.Close(); err != nil {
		return classify(err)
	}

	return nil
}
