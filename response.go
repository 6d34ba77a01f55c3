// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package surrealq

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/canonical/surrealq/internal/value"
)

// ErrNoRows is returned by [Response.DecodeOne] when a statement returned
// no rows.
var ErrNoRows = errors.New("no rows in result")

const (
	StatusOK  = "OK"
	StatusErr = "ERR"
)

// Result is the outcome of a single statement.
type Result struct {
	// Status is StatusOK or StatusErr.
	Status string
	// Time is the execution time reported by the database.
	Time string
	// Result holds the value returned by the statement.
	Result Value
	// Detail holds the error message of a failed statement.
	Detail string
}

// Response holds one Result per statement of the program, in order.
type Response struct {
	Results []Result
}

// Len returns the number of statement results.
func (r *Response) Len() int {
	return len(r.Results)
}

// Err returns a *QueryError for the first failed statement, or nil.
func (r *Response) Err() error {
	for i := range r.Results {
		if err := r.statementErr(i); err != nil {
			return err
		}
	}
	return nil
}

func (r *Response) statementErr(i int) error {
	res := r.Results[i]
	if res.Status == StatusErr {
		return &QueryError{Index: i, Detail: res.Detail}
	}
	return nil
}

// Take returns the value produced by statement i.
func (r *Response) Take(i int) (Value, error) {
	if i < 0 || i >= len(r.Results) {
		return nil, fmt.Errorf("statement %d out of range, response has %d results", i, len(r.Results))
	}
	if err := r.statementErr(i); err != nil {
		return nil, err
	}
	if r.Results[i].Result == nil {
		return Null{}, nil
	}
	return r.Results[i].Result, nil
}

// Decode decodes the value produced by statement i into dst.
func (r *Response) Decode(i int, dst any) error {
	v, err := r.Take(i)
	if err != nil {
		return err
	}
	if err := value.Decode(v, dst); err != nil {
		return fmt.Errorf("cannot decode result of statement %d: %s", i, err)
	}
	return nil
}

// DecodeOne decodes the first row produced by statement i into dst. It
// returns [ErrNoRows] if the statement produced no rows.
func (r *Response) DecodeOne(i int, dst any) error {
	v, err := r.Take(i)
	if err != nil {
		return err
	}
	switch rows := v.(type) {
	case Array:
		if len(rows) == 0 {
			return ErrNoRows
		}
		v = rows[0]
	case Null:
		return ErrNoRows
	}
	if err := value.Decode(v, dst); err != nil {
		return fmt.Errorf("cannot decode result of statement %d: %s", i, err)
	}
	return nil
}

type jsonResult struct {
	Status string `json:"status"`
	Time   string `json:"time,omitempty"`
	Result any    `json:"result"`
	Detail string `json:"detail,omitempty"`
}

// MarshalJSON encodes the response as a list of results.
func (r *Response) MarshalJSON() ([]byte, error) {
	results := make([]jsonResult, len(r.Results))
	for i, res := range r.Results {
		results[i] = jsonResult{
			Status: res.Status,
			Time:   res.Time,
			Result: value.ToGo(res.Result),
			Detail: res.Detail,
		}
	}
	return json.Marshal(results)
}

// ParseResponse builds a Response from the reply of a query call: an Array
// holding one Object with "status", "time", "result" and optionally
// "detail" per statement. The result of a failed statement holds its error
// message when "detail" is missing.
func ParseResponse(v Value) (*Response, error) {
	rows, ok := v.(Array)
	if !ok {
		return nil, fmt.Errorf("cannot parse response: need array, got %s", kindOf(v))
	}
	resp := &Response{Results: make([]Result, len(rows))}
	for i, row := range rows {
		o, ok := row.(Object)
		if !ok {
			return nil, fmt.Errorf("cannot parse response: result %d: need object, got %s", i, kindOf(row))
		}
		res := Result{Result: o["result"]}
		if res.Result == nil {
			res.Result = Null{}
		}
		if s, ok := o["status"].(Strand); ok {
			res.Status = string(s)
		} else {
			return nil, fmt.Errorf("cannot parse response: result %d: missing status", i)
		}
		if s, ok := o["time"].(Strand); ok {
			res.Time = string(s)
		}
		if s, ok := o["detail"].(Strand); ok {
			res.Detail = string(s)
		}
		if res.Status == StatusErr && res.Detail == "" {
			if s, ok := res.Result.(Strand); ok {
				res.Detail = string(s)
			}
		}
		resp.Results[i] = res
	}
	return resp, nil
}

func kindOf(v Value) string {
	if v == nil {
		return "nothing"
	}
	return v.Kind().String()
}
