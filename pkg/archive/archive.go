// Package archive reads Reference Metadata module packages (.omod zip
// containers) and exposes their concept dictionary members.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/jsibley/convert-rmd-to-iniz/pkg/issue"
)

// memberPattern matches dictionary members at the root of the package:
// Reference_Application_<Dictionary>-<Version>[-<Variant>].xml
var memberPattern = regexp.MustCompile(`^Reference_Application_([A-Za-z_]+)-([0-9]+)(?:-(2\.x|pre2\.x))?\.xml$`)

// candidatePattern matches every root member named like a dictionary.
// Candidates that memberPattern rejects are malformed, not ignorable.
var candidatePattern = regexp.MustCompile(`^Reference_Application_.*\.xml$`)

// NumericDictionary is the dictionary name of the numeric concept members.
const NumericDictionary = "Numeric_Concepts"

// Member is one concept dictionary member of a package.
type Member struct {
	// Name is the member file name, e.g. Reference_Application_Concepts-20190531.xml.
	Name string
	// Dictionary is the dictionary part of the name, e.g. Concepts.
	Dictionary string
	// Version is the numeric version part of the name.
	Version string
	// Variant is the numeric member variant ("2.x" or "pre2.x"), empty otherwise.
	Variant string

	file *zip.File
}

// Numeric reports whether the member carries numeric concept attributes.
func (m *Member) Numeric() bool {
	return m.Dictionary == NumericDictionary
}

// Open opens the member content. The caller closes it.
func (m *Member) Open() (io.ReadCloser, error) {
	rc, err := m.file.Open()
	if err != nil {
		return nil, issue.New(issue.DiagArchiveMemberUnreadable, map[string]any{"member": m.Name}).Wrap(err)
	}
	return rc, nil
}

// Archive is an opened module package.
type Archive struct {
	name    string
	members []*Member
	closer  io.Closer
}

// Open opens the package at path.
func Open(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, issue.New(issue.DiagArchiveUnreadable, map[string]any{"path": path}).Wrap(err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, issue.New(issue.DiagArchiveUnreadable, map[string]any{"path": path}).Wrap(err)
	}
	if info.IsDir() {
		f.Close()
		return nil, issue.New(issue.DiagArchiveUnreadable, map[string]any{"path": path}).
			Wrap(fmt.Errorf("%s is a directory", path))
	}

	a, err := New(f, info.Size(), path)
	if err != nil {
		f.Close()
		return nil, err
	}
	a.closer = f
	return a, nil
}

// New reads a package from r. Name is used in diagnostics only.
func New(r io.ReaderAt, size int64, name string) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, issue.New(issue.DiagArchiveUnreadable, map[string]any{"path": name}).Wrap(err)
	}

	a := &Archive{name: name}
	for _, f := range zr.File {
		m, err := classify(f)
		if err != nil {
			return nil, err
		}
		if m != nil {
			a.members = append(a.members, m)
		}
	}
	sort.Slice(a.members, func(i, j int) bool {
		return a.members[i].Name < a.members[j].Name
	})
	return a, nil
}

// FromBytes reads a package held in memory.
func FromBytes(data []byte, name string) (*Archive, error) {
	return New(bytes.NewReader(data), int64(len(data)), name)
}

// classify returns the dictionary member for f, or nil for module content
// such as class files, libraries and manifests. A root member named like a
// dictionary that does not follow the naming scheme is an archive error.
func classify(f *zip.File) (*Member, error) {
	if f.FileInfo().IsDir() || strings.Contains(f.Name, "/") {
		return nil, nil
	}
	if !candidatePattern.MatchString(f.Name) {
		return nil, nil
	}
	match := memberPattern.FindStringSubmatch(f.Name)
	if match == nil {
		return nil, unexpected(f.Name, "expected Reference_Application_<dictionary>-<version>[-2.x|-pre2.x].xml")
	}
	m := &Member{
		Name:       f.Name,
		Dictionary: match[1],
		Version:    match[2],
		Variant:    match[3],
		file:       f,
	}
	if m.Variant != "" && !m.Numeric() {
		return nil, unexpected(f.Name, "only "+NumericDictionary+" members carry a schema variant")
	}
	return m, nil
}

func unexpected(member, reason string) error {
	return issue.New(issue.DiagArchiveUnexpectedMember, map[string]any{"member": member, "reason": reason})
}

// Name returns the package name given to Open or New.
func (a *Archive) Name() string {
	return a.name
}

// Members returns the dictionary members sorted by name. Numeric members
// whose variant is rejected by accept are left out. A package without any
// selected member is an archive error.
func (a *Archive) Members(accept func(variant string) bool) ([]*Member, error) {
	var out []*Member
	for _, m := range a.members {
		if m.Numeric() && accept != nil && !accept(m.Variant) {
			continue
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, issue.New(issue.DiagArchiveNoMembers, map[string]any{"path": a.name})
	}
	return out, nil
}

// Version returns the highest dictionary version in the package, or "" when
// it has no dictionary member.
func (a *Archive) Version() string {
	best := ""
	for _, m := range a.members {
		if best == "" || compareVersions(m.Version, best) > 0 {
			best = m.Version
		}
	}
	return best
}

// Close releases the underlying file, if any.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// compareVersions orders all-digit versions numerically.
func compareVersions(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
