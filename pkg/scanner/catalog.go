package scanner

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Top100Ports are the 100 most frequently open TCP ports (nmap frequency
// order). Kept in this order so results stay comparable with earlier scans.
var Top100Ports = []uint16{
	80, 23, 443, 21, 22, 25, 3389, 110, 445, 139,
	143, 53, 135, 3306, 8080, 1723, 111, 995, 993, 5900,
	1025, 587, 8888, 199, 1720, 465, 548, 113, 81, 6001,
	10000, 514, 5060, 179, 1026, 2000, 8443, 8000, 32768, 554,
	26, 1433, 49152, 2001, 515, 8008, 49154, 1027, 5666, 646,
	5000, 5631, 631, 49153, 8081, 2049, 88, 79, 5800, 106,
	2121, 1110, 49155, 6000, 513, 990, 5357, 427, 49156, 543,
	544, 5101, 144, 7, 389, 8009, 3128, 444, 9999, 5009,
	7070, 5190, 3000, 5432, 1900, 3986, 13, 1029, 9, 5051,
	6646, 49157, 1028, 873, 1755, 2717, 4899, 9100, 119, 37,
}

// Catalog is an immutable ordered list of distinct ports to probe
type Catalog struct {
	ports []uint16
}

// catalogFile is the on-disk YAML layout:
//
//	ports: [80, 443, 8080]
type catalogFile struct {
	Ports []uint16 `yaml:"ports"`
}

// DefaultCatalog returns the built-in top 100 catalog
func DefaultCatalog() Catalog {
	return Catalog{ports: slices.Clone(Top100Ports)}
}

// NewCatalog validates ports and returns a catalog holding a private copy.
// Ports must be non-empty, non-zero and distinct.
func NewCatalog(ports []uint16) (Catalog, error) {
	if len(ports) == 0 {
		return Catalog{}, fmt.Errorf("port catalog is empty")
	}

	seen := make(map[uint16]struct{}, len(ports))
	for _, p := range ports {
		if p == 0 {
			return Catalog{}, fmt.Errorf("port catalog contains port 0")
		}
		if _, dup := seen[p]; dup {
			return Catalog{}, fmt.Errorf("port catalog lists port %d twice", p)
		}
		seen[p] = struct{}{}
	}

	return Catalog{ports: slices.Clone(ports)}, nil
}

// ParseCatalog decodes a YAML catalog document
func ParseCatalog(data []byte) (Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Catalog{}, fmt.Errorf("invalid port catalog: %w", err)
	}
	return NewCatalog(f.Ports)
}

// LoadCatalogFile reads a YAML catalog from path
func LoadCatalogFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to read port catalog: %w", err)
	}
	return ParseCatalog(data)
}

// Ports returns a copy of the catalog entries in order
func (c Catalog) Ports() []uint16 {
	return slices.Clone(c.ports)
}

// Len returns the number of ports in the catalog
func (c Catalog) Len() int {
	return len(c.ports)
}
