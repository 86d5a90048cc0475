// Package data embeds the default user table and catalog so the server runs
// out of the box when no data files are configured.
package data

import _ "embed"

// Users is the default user table document.
//
//go:embed usuarios.json
var Users []byte

// Catalog is the default catalog document.
//
//go:embed tienda.json
var Catalog []byte
