package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/lagrangedao/go-akash-deployer/internal/certs"
)

const (
	certPrefix = "cert-"
	urlPrefix  = "url-"
)

// Store keeps client certificates and discovered deployment URLs on disk.
type Store struct {
	db *leveldb.DB
}

func Open(p string) (*Store, error) {
	if err := os.MkdirAll(p, 0700); err != nil {
		return nil, err
	}
	db, err := leveldb.OpenFile(p, nil)
	if err != nil {
		return nil, fmt.Errorf("failed open store %s, error: %w", p, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetCertificate(address string) (*certs.Certificate, error) {
	value, err := s.db.Get([]byte(certPrefix+address), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading certificate '%s': %w", address, err)
	}
	var cert certs.Certificate
	if err := json.Unmarshal(value, &cert); err != nil {
		return nil, fmt.Errorf("decoding certificate '%s': %w", address, err)
	}
	return &cert, nil
}

func (s *Store) PutCertificate(cert *certs.Certificate) error {
	value, err := json.Marshal(cert)
	if err != nil {
		return err
	}
	if err := s.db.Put([]byte(certPrefix+cert.Address), value, nil); err != nil {
		return fmt.Errorf("writing certificate '%s': %w", cert.Address, err)
	}
	return nil
}

// URLRecord is a public URL discovered for a deployment.
type URLRecord struct {
	DSeq       uint64    `json:"dseq"`
	URL        string    `json:"url"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RecordURL appends url to the log of discovered deployment URLs. A url
// equal to the latest one recorded for dseq is ignored.
func (s *Store) RecordURL(dseq uint64, url string) error {
	latest, err := s.LatestURL(dseq)
	if err != nil {
		return err
	}
	if latest == url {
		return nil
	}

	record := URLRecord{DSeq: dseq, URL: url, RecordedAt: time.Now().UTC()}
	value, err := json.Marshal(record)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s%020d-%d", urlPrefix, dseq, record.RecordedAt.UnixNano())
	if err := s.db.Put([]byte(key), value, nil); err != nil {
		return fmt.Errorf("writing url of deployment %d: %w", dseq, err)
	}
	return nil
}

// URLs returns every recorded URL ordered by deployment sequence and time.
func (s *Store) URLs() ([]URLRecord, error) {
	var records []URLRecord
	iter := s.db.NewIterator(util.BytesPrefix([]byte(urlPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		var record URLRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			return nil, fmt.Errorf("decoding url record %s: %w", string(iter.Key()), err)
		}
		records = append(records, record)
	}
	return records, iter.Error()
}

// LatestURL returns the most recent URL recorded for dseq, or "".
func (s *Store) LatestURL(dseq uint64) (string, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(fmt.Sprintf("%s%020d-", urlPrefix, dseq))), nil)
	defer iter.Release()

	var latest string
	for iter.Next() {
		var record URLRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			return "", err
		}
		latest = record.URL
	}
	return latest, iter.Error()
}
