package docstore

import (
	"fmt"
	"strings"
)

// CollectionRef addresses a collection by its full path, e.g.
// "classrooms" or "classrooms/c1/members".
type CollectionRef struct {
	Path string
}

// Collection returns a top-level collection reference.
func Collection(name string) CollectionRef {
	return CollectionRef{Path: name}
}

// Doc returns a reference to the document id inside c.
func (c CollectionRef) Doc(id string) DocRef {
	return DocRef{Coll: c, ID: id}
}

// Name is the last path segment, the name collection-group queries match on.
func (c CollectionRef) Name() string {
	if i := strings.LastIndexByte(c.Path, '/'); i >= 0 {
		return c.Path[i+1:]
	}
	return c.Path
}

// Parent returns the document a subcollection hangs off.
func (c CollectionRef) Parent() (DocRef, bool) {
	i := strings.LastIndexByte(c.Path, '/')
	if i < 0 {
		return DocRef{}, false
	}
	ref, err := ParseDocRef(c.Path[:i])
	if err != nil {
		return DocRef{}, false
	}
	return ref, true
}

// Validate checks that the path has an odd number of non-empty segments.
func (c CollectionRef) Validate() error {
	segs := strings.Split(c.Path, "/")
	if len(segs)%2 != 1 {
		return fmt.Errorf("%w: collection %q", ErrInvalidPath, c.Path)
	}
	for _, s := range segs {
		if s == "" {
			return fmt.Errorf("%w: collection %q", ErrInvalidPath, c.Path)
		}
	}
	return nil
}

// DocRef addresses one document.
type DocRef struct {
	Coll CollectionRef
	ID   string
}

// Path is the full slash-separated document path.
func (d DocRef) Path() string {
	return d.Coll.Path + "/" + d.ID
}

// Collection returns the named subcollection of this document.
func (d DocRef) Collection(name string) CollectionRef {
	return CollectionRef{Path: d.Path() + "/" + name}
}

// Root is the top-level collection the document lives under.
func (d DocRef) Root() string {
	if i := strings.IndexByte(d.Coll.Path, '/'); i >= 0 {
		return d.Coll.Path[:i]
	}
	return d.Coll.Path
}

func (d DocRef) String() string {
	return d.Path()
}

// Validate checks the collection path and that the id has no separators.
func (d DocRef) Validate() error {
	if d.ID == "" || strings.Contains(d.ID, "/") {
		return fmt.Errorf("%w: document id %q", ErrInvalidPath, d.ID)
	}
	return d.Coll.Validate()
}

// ParseDocRef parses a full document path.
func ParseDocRef(path string) (DocRef, error) {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 {
		return DocRef{}, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	ref := DocRef{Coll: CollectionRef{Path: path[:i]}, ID: path[i+1:]}
	if err := ref.Validate(); err != nil {
		return DocRef{}, err
	}
	return ref, nil
}
