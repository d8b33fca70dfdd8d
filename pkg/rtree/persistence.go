package rtree

import (
	"encoding/gob"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/kass/charge-planner/pkg/models"
)

// Snapshot is the serializable form of a facility index. The tree itself is
// rebuilt on load.
type Snapshot struct {
	Facilities []models.Facility
	CreatedAt  time.Time
}

// SaveToFile writes the indexed facilities to a gob file.
func (ix *FacilityIndex) SaveToFile(filename string) error {
	data := Snapshot{
		Facilities: ix.facilities,
		CreatedAt:  time.Now().UTC(),
	}

	file, err := os.Create(filename)
	if err != nil {
		return eris.Wrapf(err, "rtree: create snapshot %s", filename)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(data); err != nil {
		return eris.Wrap(err, "rtree: encode snapshot")
	}
	if err := file.Sync(); err != nil {
		return eris.Wrap(err, "rtree: sync snapshot")
	}
	return nil
}

// LoadFromFile reads a snapshot written by SaveToFile and rebuilds the index.
func LoadFromFile(filename string) (*FacilityIndex, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, eris.Wrapf(err, "rtree: open snapshot %s", filename)
	}
	defer file.Close()

	var data Snapshot
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, eris.Wrap(err, "rtree: decode snapshot")
	}

	ix, err := Build(data.Facilities)
	if err != nil {
		return nil, eris.Wrapf(err, "rtree: rebuild index from %s", filename)
	}
	return ix, nil
}
