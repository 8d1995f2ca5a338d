// Package store is the durable file store for recordings and exports.
//
// All media files live under one private root directory on an afero
// filesystem, so production code writes to disk through afero.NewOsFs while
// tests run against afero.NewMemMapFs. Intermediate files get
// collision-resistant names from TempPath.
package store
