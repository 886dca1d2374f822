// Package migrate manages a directory of revision scripts and applies them to a
// database through github.com/rubenv/sql-migrate.
//
// Every revision script is a plain SQL file understood by sql-migrate, with a
// comment header that links it to the revisions it builds on:
//
//	-- Revision ID: 1975ea83b712
//	-- Revises: ae1027a6acf4
//	-- Create Date: 2024-01-02 15:04:05
//	-- Branch Labels:
//	-- Depends On:
//	-- Message: add accounts
//
//	-- +migrate Up
//	CREATE TABLE accounts (id SERIAL PRIMARY KEY);
//
//	-- +migrate Down
//	DROP TABLE accounts;
//
// The `Revises` links form a graph. A ScriptDirectory loads that graph and
// answers the questions sql-migrate cannot: which revisions are heads, where the
// graph branches and merges, and which set of scripts a revision expression such
// as `head`, `ae10+1` or `shop@head` refers to. Execution and the applied-version
// table stay with sql-migrate.
//
// The command functions (Init, Revision, Merge, Upgrade, Downgrade, Show,
// History, Heads, Branches, Current, Stamp and Rehash) each take a *Config built
// by NewConfig and an options struct, and write their report output to
// Config.Output.
package migrate
