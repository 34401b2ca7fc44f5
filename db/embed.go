// Package db provides the embedded database schema.
package db

import _ "embed"

// Schema contains the DDL statements for the commerce tables: courses, carts,
// coupons, orders and enrollments.
//
//go:embed migrations/001_schema.sql
var Schema string
