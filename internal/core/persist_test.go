package core

import (
	"errors"
	"reflect"
	"testing"
)

func TestMarshalCollection(t *testing.T) {
	c, _ := Parse("date,category,amount\n2024-01-05,Loyer,800\n2024-01-07,\"Courses\",120.5")
	got, err := MarshalCollection(c)
	if err != nil {
		t.Fatalf("MarshalCollection() error = %v", err)
	}
	want := `[{"date":"2024-01-05","category":"Loyer","amount":"800"},` +
		`{"date":"2024-01-07","category":"\"Courses\"","amount":"120.5"}]`
	if string(got) != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestMarshalCollection_Empty(t *testing.T) {
	got, err := MarshalCollection(RecordCollection{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "[]" {
		t.Errorf("got %s, want []", got)
	}
}

func TestUnmarshalCollection(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		wantSchema Schema
		wantRecs   []Record
		wantErr    error
	}{
		{
			name:       "key order becomes schema",
			data:       `[{"type":"Besoins","amount":"12"},{"amount":"3","type":"Urgences"}]`,
			wantSchema: Schema{"type", "amount"},
			wantRecs:   []Record{{"type": "Besoins", "amount": "12"}, {"type": "Urgences", "amount": "3"}},
		},
		{
			name:       "scalars stringified",
			data:       `[{"amount":12.50,"paid":true,"note":null}]`,
			wantSchema: Schema{"amount", "paid", "note"},
			wantRecs:   []Record{{"amount": "12.50", "paid": "true", "note": ""}},
		},
		{
			name:       "empty array",
			data:       `[]`,
			wantSchema: nil,
			wantRecs:   nil,
		},
		{
			name:    "diverging keys",
			data:    `[{"a":"1"},{"b":"2"}]`,
			wantErr: ErrSchemaMismatch,
		},
		{
			name:    "nested value",
			data:    `[{"a":{"b":"c"}}]`,
			wantErr: ErrSchemaMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnmarshalCollection([]byte(tt.data))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got.Schema, tt.wantSchema) {
				t.Errorf("Schema = %q, want %q", got.Schema, tt.wantSchema)
			}
			if !reflect.DeepEqual(got.Records, tt.wantRecs) {
				t.Errorf("Records = %v, want %v", got.Records, tt.wantRecs)
			}
		})
	}
}

func TestUnmarshalCollection_Malformed(t *testing.T) {
	for _, data := range []string{``, `{}`, `[{"a":"1"}`, `["a"]`, `[] []`} {
		if _, err := UnmarshalCollection([]byte(data)); err == nil {
			t.Errorf("UnmarshalCollection(%q) expected error", data)
		}
	}
}

func TestRoundTrip_JSONThenCSV(t *testing.T) {
	orig, _ := Parse("date,category,amount,type\n" +
		"2024-01-05,Loyer,800,Charges fixes\n" +
		"2024-01-10,Livret A,200,Épargne\n" +
		"2024-01-11,,,\n")

	data, err := MarshalCollection(orig)
	if err != nil {
		t.Fatalf("MarshalCollection() error = %v", err)
	}
	restored, err := UnmarshalCollection(data)
	if err != nil {
		t.Fatalf("UnmarshalCollection() error = %v", err)
	}
	reparsed, err := Parse(EncodeCSV(restored))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !reflect.DeepEqual(reparsed.Schema, orig.Schema) {
		t.Errorf("Schema = %q, want %q", reparsed.Schema, orig.Schema)
	}
	if !reflect.DeepEqual(reparsed.Records, orig.Records) {
		t.Errorf("Records = %v, want %v", reparsed.Records, orig.Records)
	}
}

func TestEncodeCSV(t *testing.T) {
	c, _ := Parse("x,y,x\n1,2,3")
	got := EncodeCSV(c)
	want := "x,y\n3,2\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
