package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"energy-forecast/internal/series"

	"go.etcd.io/bbolt"
)

// Timestamps are written zero-padded so that byte order matches time order.
const keyFormat = "%s_%020d"

func pointKey(name string, ts time.Time) []byte {
	return []byte(fmt.Sprintf(keyFormat, name, ts.UnixNano()))
}

func validName(name string) error {
	if name == "" {
		return fmt.Errorf("series name is empty")
	}
	if strings.Contains(name, "_") {
		return fmt.Errorf("series name %q must not contain '_'", name)
	}
	return nil
}

// StorePoints writes points under the named series in a single transaction.
// Points must carry timestamps at or after the Unix epoch; an existing point
// with the same timestamp is overwritten.
func (s *Store) StorePoints(name string, points []series.Point) error {
	if err := validName(name); err != nil {
		return err
	}
	for i, p := range points {
		if p.Timestamp.IsZero() {
			return fmt.Errorf("point %d has no timestamp", i)
		}
		if p.Timestamp.Before(time.Unix(0, 0)) {
			return fmt.Errorf("point %d timestamp %s is before the Unix epoch", i, p.Timestamp.Format(time.RFC3339))
		}
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(seriesBucket))
		for _, p := range points {
			data, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("marshal point: %w", err)
			}
			if err := b.Put(pointKey(name, p.Timestamp), data); err != nil {
				return fmt.Errorf("put point: %w", err)
			}
		}
		return nil
	})
}

// GetPoints returns the points of the named series within [start, end],
// ordered by timestamp. A zero start or end leaves that side open.
func (s *Store) GetPoints(name string, start, end time.Time) ([]series.Point, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	var points []series.Point
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(seriesBucket)).Cursor()

		prefix := []byte(name + "_")
		seek := prefix
		if !start.IsZero() && !start.Before(time.Unix(0, 0)) {
			seek = pointKey(name, start)
		}
		var endKey []byte
		if !end.IsZero() {
			endKey = pointKey(name, end)
		}

		for k, v := c.Seek(seek); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			if endKey != nil && compareKeys(k, endKey) > 0 {
				break
			}
			var p series.Point
			if err := json.Unmarshal(v, &p); err != nil {
				continue // Skip malformed records
			}
			points = append(points, p)
		}
		return nil
	})
	return points, err
}

// SeriesNames lists the names of all stored series.
func (s *Store) SeriesNames() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(seriesBucket)).Cursor()
		for k, _ := c.First(); k != nil; {
			name, _, ok := strings.Cut(string(k), "_")
			if !ok {
				k, _ = c.Next()
				continue
			}
			names = append(names, name)
			// Jump past every key of this series.
			k, _ = c.Seek([]byte(name + "`"))
		}
		return nil
	})
	return names, err
}

// DeleteSeries removes every point of the named series.
func (s *Store) DeleteSeries(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(seriesBucket)).Cursor()
		prefix := []byte(name + "_")
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Seek(prefix) {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}
