package handlers

import (
	"docbucket/bucket"
	"docbucket/config"
	"docbucket/core"
)

// Container holds dependencies for handlers
type Container struct {
	Operations core.Operations
	Bucket     *bucket.Bucket
	Config     *config.Config
}
