/*
Surrealq binds Go values to the parameters of SurrealQL queries and sends
them to the database in a single request.

# Basics

A query is started from a [DB] and built by chaining calls. Statements may be
added with [Query.Query] and parameters bound with [Query.Bind]:

	db := surrealq.NewDB(conn)
	resp, err := db.Query("CREATE user SET name = $name, company = $company").
		Bind(surrealq.NamedString("name", "John")).
		Bind(surrealq.NamedString("company", "company:acme")).
		Run(ctx)

Statements are parsed when they are added. Every statement is sent, in the
order it was added, together with the parameters as one program when
[Query.Run] is called. If any statement failed to parse, or any binding
failed, Run returns that error and nothing is sent.

# Record ids

A string bound with [NamedString], or found in a field decomposed with
[Fields], is checked against the record id syntax

	table:key

where table is an identifier, optionally escaped with ⟨⟩ or backticks, and
key is an integer, an identifier, an escaped identifier, an array literal or
an object literal. Strings that match are bound as a [Thing]. Strings that do
not match are bound as they are; this is not an error.

# Bindings

The available bindings are:

 1. NamedValue("name", v)
    - Binds a Value as it is.

 2. NamedString("name", s)
    - Binds a record id or a plain string.

 3. NamedOptionalString("name", &s)
    - Binds nothing when the pointer is nil.

 4. Pair("name", v)
    - Binds any Go value converted with ValueOf.

 5. Fields(v)
    - Binds every `db` tagged field of a struct, or every key of a map or Object.
    - Other shapes fail with ErrUnsupportedShape.

 6. Entries(v)
    - As Fields, without reading strings as record ids.

A later binding for a name replaces an earlier one.
*/
package surrealq
