// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package typeinfo contains the reflection over Go struct types used when
decomposing values into query parameters and when decoding results back into
Go values. A struct field takes part only when it carries a `db` tag; the tag
names the parameter and may carry the "omitempty" option.
*/
package typeinfo
