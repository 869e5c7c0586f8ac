package memory

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapquery/pkg/criteria"
)

// fixtureSet maps resource names to their fixture records.
type fixtureSet map[string][]criteria.Record

func (s fixtureSet) resources() []string {
	names := make([]string, 0, len(s))
	for res := range s {
		names = append(names, res)
	}
	sort.Strings(names)
	return names
}

// LoadFixtures reads a YAML document mapping resource names to record
// lists and inserts the records:
//
//	users:
//	  - name: first
//	    likeCount: 20
func (a *Adapter) LoadFixtures(r io.Reader) error {
	set, err := parseFixtures(r)
	if err != nil {
		return err
	}
	for _, res := range set.resources() {
		a.Insert(res, set[res]...)
	}
	return nil
}

// LoadFixtureFile loads fixtures from a YAML file.
func (a *Adapter) LoadFixtureFile(path string) error {
	set, err := readFixtureFile(path)
	if err != nil {
		return err
	}
	for _, res := range set.resources() {
		a.Insert(res, set[res]...)
	}
	return nil
}

func parseFixtures(r io.Reader) (fixtureSet, error) {
	var doc map[string][]map[string]any
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return fixtureSet{}, nil
		}
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}

	set := make(fixtureSet, len(doc))
	for res, rows := range doc {
		records := make([]criteria.Record, len(rows))
		for i, m := range rows {
			records[i] = criteria.Record(m)
		}
		set[res] = records
	}
	return set, nil
}

func readFixtureFile(path string) (fixtureSet, error) {
	f, err := os.Open(path) //nolint:gosec // fixture paths come from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open fixtures: %w", err)
	}
	defer func() { _ = f.Close() }()

	set, err := parseFixtures(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}
