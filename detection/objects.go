package detection

import (
	"strconv"

	"github.com/pkg/errors"
)

// ObjectIndex maps object identifiers to their column in the detection table. In the flat row
// layout the boxes of column c occupy values [4·c, 4·c+4).
type ObjectIndex struct {
	ids     []string
	columns map[string]int
}

// NewObjectIndex builds an index from object identifiers, in column order.
func NewObjectIndex(ids []string) (*ObjectIndex, error) {
	columns := make(map[string]int, len(ids))
	for col, id := range ids {
		if id == "" {
			return nil, errors.Errorf("object %d has an empty identifier", col)
		}
		if prev, ok := columns[id]; ok {
			return nil, errors.Errorf("object identifier %q used by columns %d and %d", id, prev, col)
		}
		columns[id] = col
	}
	idsCopy := make([]string, len(ids))
	copy(idsCopy, ids)
	return &ObjectIndex{ids: idsCopy, columns: columns}, nil
}

// NewNumberedObjectIndex names n objects "0" … "n-1".
func NewNumberedObjectIndex(n int) *ObjectIndex {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = strconv.Itoa(i)
	}
	// numbered ids can never collide
	idx, _ := NewObjectIndex(ids)
	return idx
}

// Len is the number of objects.
func (idx *ObjectIndex) Len() int {
	return len(idx.ids)
}

// ID returns the identifier of a column.
func (idx *ObjectIndex) ID(col int) string {
	return idx.ids[col]
}

// IDs returns all identifiers in column order.
func (idx *ObjectIndex) IDs() []string {
	ids := make([]string, len(idx.ids))
	copy(ids, idx.ids)
	return ids
}

// Column returns the column of an identifier.
func (idx *ObjectIndex) Column(id string) (int, bool) {
	col, ok := idx.columns[id]
	return col, ok
}

// FlatRange is the half open range of values an object occupies in a flat detection row.
func (idx *ObjectIndex) FlatRange(id string) (int, int, error) {
	col, ok := idx.columns[id]
	if !ok {
		return 0, 0, errors.Errorf("unknown object %q", id)
	}
	return col * CornersPerBox, (col + 1) * CornersPerBox, nil
}
