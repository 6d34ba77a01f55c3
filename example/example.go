// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package example runs a small program against an in-memory SQLite
// database. People refer to their home towns by record id.
package example

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	_ "github.com/mattn/go-sqlite3"

	"github.com/canonical/surrealq"
	"github.com/canonical/surrealq/transport/sqldb"
)

type Person struct {
	Name     string `db:"name"`
	Height   int    `db:"height_cm"`
	HomeTown string `db:"home_town"`
}

type Place struct {
	ID         string `db:"id"`
	Name       string `db:"town_name"`
	Population int    `db:"population"`
}

var people = []Person{
	{"Jim", 150, "place:kabul"},
	{"Saba", 162, "place:berlin"},
	{"Dave", 169, "place:⟨brasília⟩"},
	{"Sophie", 174, "place:berlin"},
	{"Kiri", 168, "place:cape_town"},
}

var places = []Place{
	{"place:kabul", "Kabul", 13000000},
	{"place:berlin", "Berlin", 3677472},
	{"place:⟨brasília⟩", "Brasília", 3039444},
	{"place:cape_town", "Cape Town", 4710000},
}

// Run creates and fills the tables, then prints who is taller than Jim and
// where they live.
func Run(ctx context.Context, w io.Writer) error {
	sqlDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	sqlDB.SetMaxOpenConns(1)

	conn := sqldb.New(sqlDB)
	defer conn.Close()
	db := surrealq.NewDB(conn)

	resp, err := db.Query(`
		CREATE TABLE people (
			name text,
			height_cm integer,
			home_town text
		);
		CREATE TABLE location (
			id text,
			town_name text,
			population integer
		);`).Run(ctx)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}

	for _, person := range people {
		if err := insert(ctx, db, `
			INSERT INTO people (name, height_cm, home_town)
			VALUES ($name, $height_cm, $home_town)`, person); err != nil {
			return err
		}
	}
	for _, place := range places {
		if err := insert(ctx, db, `
			INSERT INTO location (id, town_name, population)
			VALUES ($id, $town_name, $population)`, place); err != nil {
			return err
		}
	}

	jim := people[0]
	resp, err = db.Query(`
		SELECT name, height_cm, home_town
		FROM people
		WHERE height_cm > $height_cm
		ORDER BY height_cm`).
		Query(`
		SELECT DISTINCT l.id, l.town_name, l.population
		FROM people AS p, location AS l
		WHERE p.home_town = l.id
		AND p.height_cm > $height_cm
		ORDER BY l.town_name`).
		BindFields(jim).
		Run(ctx)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}

	var taller []Person
	if err := resp.Decode(0, &taller); err != nil {
		return err
	}
	for _, p := range taller {
		fmt.Fprintf(w, "%s is taller than %s.\n", p.Name, jim.Name)
	}

	var towns []Place
	if err := resp.Decode(1, &towns); err != nil {
		return err
	}
	for _, t := range towns {
		fmt.Fprintf(w, "%s (%s) has people taller than %s.\n", t.Name, t.ID, jim.Name)
	}
	return nil
}

func insert(ctx context.Context, db *surrealq.DB, stmt string, row any) error {
	resp, err := db.Query(stmt).BindFields(row).Run(ctx)
	if err != nil {
		return err
	}
	return resp.Err()
}
