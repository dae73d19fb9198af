// Package services holds the client-side use cases of randpic.
//
// Viewer is the display/session controller: it shows a brand-new random
// image (consuming a ready preload when there is one) or a specific cached
// image, keeps history, favorites, stats and the last shown id up to date and
// kicks the preload coordinator after every successful display. Collections,
// Preferences, Downloader, Sharer and Gallery are the smaller services built
// around it.
package services
