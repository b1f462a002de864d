// Package hnapi retrieves the identifier listing and per-item details from a
// Hacker News style JSON API, enforcing the response shapes the harvester
// depends on.
package hnapi
