package candidates

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// PackageSet is the set of packages that belong to the analyzed project.
type PackageSet map[string]struct{}

func NewPackageSet(packages ...string) PackageSet {
	set := make(PackageSet, len(packages))
	for _, p := range packages {
		if p = strings.TrimSpace(p); p != "" {
			set[p] = struct{}{}
		}
	}
	return set
}

func (s PackageSet) Contains(pkg string) bool {
	_, ok := s[pkg]
	return ok
}

// ReadPackageSet reads one package name per line.
func ReadPackageSet(r io.Reader) (PackageSet, error) {
	set := make(PackageSet)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if p := strings.TrimSpace(scanner.Text()); p != "" {
			set[p] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

func LoadPackageSet(path string) (PackageSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open package list %q: %w", path, err)
	}
	defer file.Close()
	return ReadPackageSet(file)
}
