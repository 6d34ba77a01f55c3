// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package surrealq_test

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/canonical/surrealq"
	"github.com/canonical/surrealq/transport/sqldb"
)

type Location struct {
	ID   int    `db:"room_id"`
	Name string `db:"name"`
	Team string `db:"team"`
}

type Employee struct {
	Name string `db:"name"`
	ID   int    `db:"id"`
	Team string `db:"team"`
}

func Example() {
	sqlDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		panic(err)
	}
	defer sqlDB.Close()
	sqlDB.SetMaxOpenConns(1)

	conn := sqldb.New(sqlDB)
	defer conn.Close()
	db := surrealq.NewDB(conn)
	ctx := context.Background()

	resp, err := db.Query(`
	CREATE TABLE person (
		name text,
		id integer,
		team text
	);
	CREATE TABLE location (
		room_id integer,
		name text,
		team text
	)`).Run(ctx)
	if err != nil {
		panic(err)
	}
	if err := resp.Err(); err != nil {
		panic(err)
	}

	insertEmployee := `INSERT INTO person (name, id, team) VALUES ($name, $id, $team)`
	people := []Employee{
		{"Alastair", 1, "engineering"},
		{"Ed", 2, "engineering"},
		{"Pedro", 4, "management"},
		{"Sam", 8, "hr"},
	}
	for _, p := range people {
		resp, err := db.Query(insertEmployee).BindFields(p).Run(ctx)
		if err != nil {
			panic(err)
		}
		if err := resp.Err(); err != nil {
			panic(err)
		}
	}

	locations := []Location{
		{1, "The Basement", "engineering"},
		{10, "Floor 3", "management"},
		{19, "Floors 4 to 89", "hr"},
	}
	for _, l := range locations {
		_, err := db.Query(`INSERT INTO location (name, room_id, team) VALUES ($name, $room_id, $team)`).
			BindFields(l).
			Run(ctx)
		if err != nil {
			panic(err)
		}
	}

	// Several statements, and their parameters, go in one request. Each
	// statement has its own result.
	resp, err = db.Query(`SELECT name, id, team FROM person WHERE team = $team ORDER BY id`).
		Query(`SELECT room_id, name, team FROM location WHERE room_id = $room ORDER BY room_id`).
		Bind(
			surrealq.NamedString("team", "engineering"),
			surrealq.Pair("room", 10),
		).
		Run(ctx)
	if err != nil {
		panic(err)
	}

	var engineers []Employee
	if err := resp.Decode(0, &engineers); err != nil {
		panic(err)
	}
	for _, e := range engineers {
		fmt.Printf("%s is on the %s team\n", e.Name, e.Team)
	}

	var room Location
	if err := resp.DecodeOne(1, &room); err != nil {
		panic(err)
	}
	fmt.Printf("%s is on %s\n", room.Team, room.Name)

	// Output:
	// Alastair is on the engineering team
	// Ed is on the engineering team
	// management is on Floor 3
}

func ExampleNamedString() {
	params := surrealq.ParameterMap{}
	for _, b := range []surrealq.Binding{
		surrealq.NamedString("author", "person:tobie"),
		surrealq.NamedString("title", "Hello: world"),
	} {
		if err := surrealq.Resolve(b, params); err != nil {
			panic(err)
		}
	}
	fmt.Println(params["author"].Kind(), params["author"])
	fmt.Println(params["title"].Kind(), params["title"])

	// Output:
	// record id person:tobie
	// string 'Hello: world'
}

func ExampleQuery_Request() {
	var db surrealq.DB
	req, err := db.Query("CREATE user SET name = $name").
		Query("SELECT * FROM user WHERE name = $name").
		Bind(surrealq.NamedString("name", "John")).
		Request()
	if err != nil {
		panic(err)
	}
	fmt.Println(req.Program)
	fmt.Println(req.Params)

	// Output:
	// CREATE user SET name = $name;
	// SELECT * FROM user WHERE name = $name
	// map[name:'John']
}
