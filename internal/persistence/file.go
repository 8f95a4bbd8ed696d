// Package persistence writes archival records to disk.
package persistence

import (
	"encoding/json"
	"os"
	"path"
	"time"
)

// DataFile describes a JSON archival file written to disk.
type DataFile struct {
	// Prefix is the data directory.
	Prefix string
	// Datatype is the datatype, e.g. "echo1".
	Datatype string
	// Subtest is the subtest, e.g. the measurement kind.
	Subtest string
	// UUID is the unique identifier of the connection this data belongs to.
	UUID string
	// Path is the full path of the written file.
	Path string
	// Size is the number of bytes written.
	Size int
}

// WriteDataFile marshals data as JSON and writes it to a new file under
// <datadir>/<datatype>/YYYY/MM/DD/. The file name contains the datatype, the
// subtest, a timestamp and the UUID. Existing files are never overwritten.
func WriteDataFile(datadir, datatype, subtest, uuid string,
	data interface{}) (*DataFile, error) {
	timestamp := time.Now().UTC()
	dir := path.Join(datadir, datatype, timestamp.Format("2006/01/02"))
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, err
	}
	filepath := path.Join(dir, datatype+"-"+subtest+"-"+
		timestamp.Format("20060102T150405.000000000Z")+"."+uuid+".json")

	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	fp, err := os.OpenFile(filepath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, err
	}
	n, err := fp.Write(b)
	if err != nil {
		fp.Close()
		return nil, err
	}
	if err = fp.Close(); err != nil {
		return nil, err
	}
	return &DataFile{
		Prefix:   datadir,
		Datatype: datatype,
		Subtest:  subtest,
		UUID:     uuid,
		Path:     filepath,
		Size:     n,
	}, nil
}
