package sim

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aradilov/boundedring/errors"
)

// Role selects what a simulated process does with the shared channel.
type Role string

const (
	// RoleIdle waits for its arrival, runs its burst and finishes without
	// touching the channel.
	RoleIdle     Role = "idle"
	RoleProducer Role = "producer"
	RoleConsumer Role = "consumer"
)

// Descriptor is one simulated process. Arrival and Burst are counted in
// Options.Unit ticks.
type Descriptor struct {
	PID      int  `yaml:"pid"`
	Arrival  int  `yaml:"arrival"`
	Burst    int  `yaml:"burst"`
	Priority int  `yaml:"priority"`
	Role     Role `yaml:"role"`
	Items    int  `yaml:"items"`
}

// normalize fills defaults and checks ranges.
func (d *Descriptor) normalize() error {
	if d.Role == "" {
		d.Role = RoleIdle
	}
	switch d.Role {
	case RoleIdle:
		d.Items = 0
	case RoleProducer, RoleConsumer:
		if d.Items == 0 {
			d.Items = 1
		}
	default:
		return fmt.Errorf("%w: pid %d: unknown role %q", errors.ErrInvalidData, d.PID, d.Role)
	}
	if d.Arrival < 0 || d.Burst < 0 || d.Items < 0 {
		return fmt.Errorf("%w: pid %d: arrival, burst and items must be >= 0", errors.ErrInvalidData, d.PID)
	}
	return nil
}

// ParseDescriptors reads the whitespace separated process table:
//
//	PID ARRIVAL BURST PRIORITY [ROLE [ITEMS]]
//
// The first line is a header and is skipped, as are blank lines.
func ParseDescriptors(r io.Reader) ([]Descriptor, error) {
	var ds []Descriptor
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		if line == 1 {
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}

		d, err := parseFields(fields)
		if err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("line %d: %w", line, err),
				"Descriptors", "Parse", "parse process table")
		}
		ds = append(ds, d)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.WrapTransient(err, "Descriptors", "Parse", "read process table")
	}
	return ds, nil
}

func parseFields(fields []string) (Descriptor, error) {
	var d Descriptor
	if len(fields) < 4 || len(fields) > 6 {
		return d, fmt.Errorf("%w: expected 4 to 6 columns, got %d", errors.ErrParsingFailed, len(fields))
	}

	ints := []*int{&d.PID, &d.Arrival, &d.Burst, &d.Priority}
	for i, dst := range ints {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return d, fmt.Errorf("%w: column %d: %w", errors.ErrParsingFailed, i+1, err)
		}
		*dst = v
	}
	if len(fields) > 4 {
		d.Role = Role(strings.ToLower(fields[4]))
	}
	if len(fields) > 5 {
		v, err := strconv.Atoi(fields[5])
		if err != nil {
			return d, fmt.Errorf("%w: column 6: %w", errors.ErrParsingFailed, err)
		}
		d.Items = v
	}

	return d, d.normalize()
}

// ParseDescriptorsYAML reads a YAML list of descriptors.
func ParseDescriptorsYAML(r io.Reader) ([]Descriptor, error) {
	var ds []Descriptor
	if err := yaml.NewDecoder(r).Decode(&ds); err != nil && err != io.EOF {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrParsingFailed, err),
			"Descriptors", "ParseYAML", "decode process list")
	}
	for i := range ds {
		if err := ds[i].normalize(); err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("entry %d: %w", i+1, err),
				"Descriptors", "ParseYAML", "validate process list")
		}
	}
	return ds, nil
}

// LoadDescriptors reads path as YAML when it ends in .yaml or .yml and as a
// process table otherwise.
func LoadDescriptors(path string) ([]Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "Descriptors", "Load", "open "+path)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseDescriptorsYAML(f)
	default:
		return ParseDescriptors(f)
	}
}

// Balance returns items produced minus items consumed across ds. A run with a
// non-zero balance can only end through cancellation.
func Balance(ds []Descriptor) int {
	n := 0
	for _, d := range ds {
		switch d.Role {
		case RoleProducer:
			n += d.Items
		case RoleConsumer:
			n -= d.Items
		}
	}
	return n
}
