package core

import (
	"context"
	"errors"
	"net"

	"docbucket/bucket"
	"docbucket/convert"
	"docbucket/dataaccess"
	"docbucket/db"
	"docbucket/view"
)

// translate maps a backend, converter or view error onto the dataaccess
// taxonomy. Errors already carrying a kind keep it.
func translate(op, id string, err error) error {
	if err == nil {
		return nil
	}

	var batch *dataaccess.BatchError
	if errors.As(err, &batch) {
		return err
	}
	if de, ok := err.(*dataaccess.Error); ok && de.Op != "" {
		return de
	}
	if de, ok := dataaccess.As(err); ok {
		if id == "" {
			id = de.ID
		}
		return dataaccess.New(de.Kind, op, id, err)
	}
	return dataaccess.New(kindOf(err), op, id, err)
}

func kindOf(err error) dataaccess.Kind {
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return dataaccess.NotFound
	case errors.Is(err, db.ErrKeyExists):
		return dataaccess.AlreadyExists
	case errors.Is(err, convert.ErrMapping):
		return dataaccess.MappingFailed
	case errors.Is(err, view.ErrViewNotFound),
		errors.Is(err, view.ErrInvalidQuery),
		errors.Is(err, view.ErrInvalidDesign),
		errors.Is(err, db.ErrEmptyKey):
		return dataaccess.InvalidArgument
	case errors.Is(err, bucket.ErrNotOpen), errors.Is(err, db.ErrClosed):
		return dataaccess.NotReady
	case errors.Is(err, db.ErrTemporary),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return dataaccess.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return dataaccess.Transient
	}
	return dataaccess.DataAccess
}
