// Command unpack_gjz expands one or more GeoStream (.gjz) files into
// human-readable GeoJSON FeatureCollection documents.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
