package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"go.etcd.io/bbolt"

	"github.com/coreman2200/funtimes-gpiozero/waveform"
)

type BBolt struct {
	db *bbolt.DB
}

const (
	bboltRootBucket   = "gpiozero"
	bboltPresetBucket = "presets" // child of gpiozero
	bboltValueBucket  = "values"  // child of gpiozero
)

// OpenBBolt opens a bbolt database at the given path and creates the needed
// buckets if they don't exist.
func OpenBBolt(path string, mode os.FileMode, options *bbolt.Options) (*BBolt, error) {
	db, err := bbolt.Open(path, mode, options)
	if err != nil {
		return nil, fmt.Errorf("unable to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists([]byte(bboltRootBucket))
		if err != nil {
			return fmt.Errorf("unable to create bucket %q: %w", bboltRootBucket, err)
		}
		for _, name := range []string{bboltPresetBucket, bboltValueBucket} {
			if _, err := root.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("unable to create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to create bbolt buckets: %w", err)
	}

	return &BBolt{db: db}, nil
}

func (b *BBolt) Close() error {
	return b.db.Close()
}

func bucket(tx *bbolt.Tx, name string) *bbolt.Bucket {
	return tx.Bucket([]byte(bboltRootBucket)).Bucket([]byte(name))
}

func (b *BBolt) Preset(name string) (waveform.BlinkSpec, error) {
	var spec waveform.BlinkSpec
	err := b.db.View(func(tx *bbolt.Tx) error {
		specJSON := bucket(tx, bboltPresetBucket).Get([]byte(name))
		if specJSON == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(specJSON, &spec); err != nil {
			return fmt.Errorf("unable to unmarshal preset JSON: %w", err)
		}
		return nil
	})
	if err != nil {
		return spec, fmt.Errorf("unable to get preset %q: %w", name, err)
	}

	return spec, nil
}

func (b *BBolt) ListPresets() ([]string, error) {
	names := make([]string, 0)

	err := b.db.View(func(tx *bbolt.Tx) error {
		return bucket(tx, bboltPresetBucket).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("unable to list presets: %w", err)
	}

	return names, nil
}

// PutPreset validates spec before storing it.
func (b *BBolt) PutPreset(name string, spec waveform.BlinkSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("unable to marshal preset: %w", err)
	}

	err = b.db.Update(func(tx *bbolt.Tx) error {
		return bucket(tx, bboltPresetBucket).Put([]byte(name), specJSON)
	})
	if err != nil {
		return fmt.Errorf("unable to put preset %q: %w", name, err)
	}

	return nil
}

func (b *BBolt) DeletePreset(name string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		presets := bucket(tx, bboltPresetBucket)
		if presets.Get([]byte(name)) == nil {
			return ErrNotFound
		}
		return presets.Delete([]byte(name))
	})
	if err != nil {
		return fmt.Errorf("unable to delete preset %q: %w", name, err)
	}

	return nil
}

func (b *BBolt) Values() (map[string]float64, error) {
	values := map[string]float64{}

	err := b.db.View(func(tx *bbolt.Tx) error {
		return bucket(tx, bboltValueBucket).ForEach(func(k, v []byte) error {
			if len(v) != 8 {
				return fmt.Errorf("value of %q is %d bytes", k, len(v))
			}
			values[string(k)] = math.Float64frombits(binary.BigEndian.Uint64(v))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("unable to read values: %w", err)
	}

	return values, nil
}

func (b *BBolt) PutValue(device string, v float64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))

	err := b.db.Update(func(tx *bbolt.Tx) error {
		return bucket(tx, bboltValueBucket).Put([]byte(device), buf[:])
	})
	if err != nil {
		return fmt.Errorf("unable to put value of %q: %w", device, err)
	}

	return nil
}

var _ Store = (*BBolt)(nil)
