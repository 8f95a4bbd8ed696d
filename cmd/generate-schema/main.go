package main

import (
	"flag"
	"os"

	"github.com/m-lab/echoprobe/pkg/echo1/model"
	"github.com/m-lab/go/cloud/bqx"
	"github.com/m-lab/go/rtx"

	"cloud.google.com/go/bigquery"
)

var echo1Schema string

func init() {
	flag.StringVar(&echo1Schema, "echo1", "/var/spool/datatypes/echo1.json", "filename to write echo1 schema")
}

func main() {
	flag.Parse()
	// Generate and save the schema for autoloading.
	echo1Result := model.ArchivalData{}
	sch, err := bigquery.InferSchema(echo1Result)
	rtx.Must(err, "failed to generate echo1 schema")
	sch = bqx.RemoveRequired(sch)
	b, err := sch.ToJSONFields()
	rtx.Must(err, "failed to marshal echo1 schema")
	err = os.WriteFile(echo1Schema, b, 0o644)
	rtx.Must(err, "failed to write echo1 schema")
}
