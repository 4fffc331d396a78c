package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/goliatone/go-graph-datasource/cursor"
)

var (
	errTokenRequired = errors.New("cursor token is required")
	errFieldRequired = errors.New("--field is required")
)

// CursorEncodeCmd returns the cursor encode command.
func CursorEncodeCmd() *Command {
	flags := flag.NewFlagSet("cursor encode", flag.ContinueOnError)
	field := flags.StringP("field", "f", "", "sort field name")
	value := flags.StringP("value", "v", "", "boundary value, parsed as a JSON scalar when possible")

	return &Command{
		Flags: flags,
		Usage: "cursor encode --field F --value V",
		Short: "Encode a pagination cursor",
		Long: `Encode a pagination cursor.

The value is read as a JSON scalar (42, 1.5, true, null, "text") and falls
back to a plain string.`,
		Exec: func(o *IO, _ []string) error {
			return execCursorEncode(o, *field, *value)
		},
	}
}

// CursorDecodeCmd returns the cursor decode command.
func CursorDecodeCmd() *Command {
	return &Command{
		Flags: flag.NewFlagSet("cursor decode", flag.ContinueOnError),
		Usage: "cursor decode <token>",
		Short: "Decode a pagination cursor",
		Exec: func(o *IO, args []string) error {
			return execCursorDecode(o, args)
		},
	}
}

func execCursorEncode(o *IO, field, raw string) error {
	if field == "" {
		return errFieldRequired
	}

	token, err := cursor.Encode(field, parseScalar(raw))
	if err != nil {
		return err
	}

	o.Println(token)
	return nil
}

func execCursorDecode(o *IO, args []string) error {
	if len(args) == 0 {
		return errTokenRequired
	}

	c, err := cursor.Decode(args[0])
	if err != nil {
		return err
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding cursor: %w", err)
	}

	o.Println(string(data))
	return nil
}

// parseScalar reads raw as a JSON scalar, falling back to the raw string.
func parseScalar(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}

	switch n := v.(type) {
	case map[string]any, []any:
		return raw
	case float64:
		if n == float64(int64(n)) {
			return int64(n)
		}
	}
	return v
}
