// Package cli is the interactive randpic front end.
//
// NewApp wires configuration, the local database, the image cache backend,
// the HTTP fetcher and the viewer services. App.Run restores the last image
// and then reads commands until EOF or "exit". Every command prints what a
// graphical viewer would show; download and thumbs write files.
package cli
