package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/anirudhraja/devwire"
	"github.com/anirudhraja/devwire/logger"
	"github.com/anirudhraja/devwire/record"
	"github.com/anirudhraja/devwire/schema"
	"github.com/anirudhraja/devwire/wire"
)

func (s *session) decodeCmd() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "decode a message body, or a framed message when --type is not given",
		ArgsUsage: "[FILE]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "message type of an unframed body",
			},
			&cli.BoolFlag{
				Name:  "hex",
				Usage: "input is hex text",
			},
			&cli.BoolFlag{
				Name:  "set-only",
				Usage: "omit unset fields instead of printing them as null",
			},
			&cli.BoolFlag{
				Name:  "raw",
				Usage: "list the raw fields of a body without a schema",
			},
		},
		Action: func(c *cli.Context) error {
			data, err := readInput(c, c.Bool("hex"))
			if err != nil {
				return err
			}
			if c.Bool("raw") {
				return s.renderRaw(c.App.Writer, data)
			}

			var rec *record.Record
			if t := c.String("type"); t != "" {
				rec, err = s.dw.Decode(data, t)
			} else {
				rec, err = s.dw.DecodeFrame(data)
			}
			if err != nil {
				return err
			}

			out := rec.AsMap()
			if c.Bool("set-only") {
				out = rec.SetMap()
			}
			return render(c.App.Writer, s.settings.Output, out)
		},
	}
}

// renderRaw prints every field of data by tag, wire type and offset.
func (s *session) renderRaw(w io.Writer, data []byte) error {
	fields, err := wire.ScanFields(data)
	if err != nil {
		return err
	}
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, map[string]any{
			"tag":       int64(f.FieldNumber),
			"wire_type": f.WireType.String(),
			"offset":    int64(f.Offset),
			"value":     f.Value,
		})
	}
	return render(w, s.settings.Output, map[string]any{"fields": out})
}

func (s *session) encodeCmd() *cli.Command {
	return &cli.Command{
		Name:      "encode",
		Usage:     "encode a JSON or YAML document keyed by field name",
		ArgsUsage: "[FILE]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "type",
				Aliases:  []string{"t"},
				Usage:    "message type",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "frame",
				Usage: "wrap the body in a frame carrying its wire identity",
			},
			&cli.BoolFlag{
				Name:  "hex",
				Usage: "write hex text instead of raw bytes",
			},
		},
		Action: func(c *cli.Context) error {
			input, err := readInput(c, false)
			if err != nil {
				return err
			}
			values, err := parseInput(input)
			if err != nil {
				return err
			}

			rec, err := s.dw.NewRecord(c.String("type"), values)
			if err != nil {
				return err
			}
			var data []byte
			if c.Bool("frame") {
				data, err = s.dw.EncodeFrame(rec)
			} else {
				data, err = s.dw.Encode(rec)
			}
			if err != nil {
				return err
			}

			if c.Bool("hex") {
				_, err = fmt.Fprintln(c.App.Writer, hex.EncodeToString(data))
				return err
			}
			_, err = c.App.Writer.Write(data)
			return err
		},
	}
}

func (s *session) fieldsCmd() *cli.Command {
	return &cli.Command{
		Name:  "fields",
		Usage: "list the fields of a message type",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "type",
				Aliases:  []string{"t"},
				Usage:    "message type",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			msg, err := s.dw.GetRegistry().GetMessage(c.String("type"))
			if err != nil {
				return err
			}
			return printFields(c.App.Writer, msg)
		},
	}
}

func printFields(w io.Writer, msg *schema.Message) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s (wire id %d)\n", msg.Name, msg.WireIdentity())
	fmt.Fprintln(tw, "TAG\tNAME\tLABEL\tTYPE")
	for _, f := range msg.DescribeFields() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", f.Number, f.Name, f.Label, typeName(f.Type))
	}
	for _, r := range msg.Reserved {
		if r.Start == r.End {
			fmt.Fprintf(tw, "%d\t-\treserved\t\n", r.Start)
		} else {
			fmt.Fprintf(tw, "%d-%d\t-\treserved\t\n", r.Start, r.End)
		}
	}
	if len(msg.ReservedNames) > 0 {
		fmt.Fprintf(tw, "reserved names: %s\n", strings.Join(msg.ReservedNames, ", "))
	}
	return tw.Flush()
}

func typeName(t schema.FieldType) string {
	switch t.Kind {
	case schema.KindMessage:
		return t.MessageType
	case schema.KindEnum:
		return t.EnumType
	default:
		return string(t.PrimitiveType)
	}
}

func (s *session) checkCmd() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "validate the loaded schemas, and their evolution from a previous version",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "previous",
				Usage: "proto file or directory holding the previously published schemas",
			},
		},
		Action: func(c *cli.Context) error {
			reg := s.dw.GetRegistry()

			var prev *devwire.Devwire
			if c.IsSet("previous") {
				var err error
				if prev, err = loadSchemas(c.StringSlice("previous")); err != nil {
					return fmt.Errorf("load previous schemas: %w", err)
				}
			}

			var errs error
			for _, name := range reg.ListMessages() {
				msg, err := reg.GetMessage(name)
				if err != nil {
					errs = multierr.Append(errs, err)
					continue
				}
				if err := msg.Validate(); err != nil {
					errs = multierr.Append(errs, err)
					continue
				}
				if prev == nil {
					continue
				}
				old, err := prev.GetRegistry().GetMessage(name)
				if err != nil {
					logger.Logger.Debug("no previous version", zap.String("message", name))
					continue
				}
				errs = multierr.Append(errs, schema.CheckEvolution(old, msg))
			}

			for _, err := range multierr.Errors(errs) {
				fmt.Fprintln(c.App.ErrWriter, err)
			}
			if errs != nil {
				return fmt.Errorf("%d problem(s) found", len(multierr.Errors(errs)))
			}
			fmt.Fprintf(c.App.Writer, "%d message(s) ok\n", len(reg.ListMessages()))
			return nil
		},
	}
}

// readInput reads the file named by the first argument, or stdin when there
// is none or it is "-".
func readInput(c *cli.Context, isHex bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch path := c.Args().First(); path {
	case "", "-":
		data, err = io.ReadAll(c.App.Reader)
	default:
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	if !isHex {
		return data, nil
	}
	return hex.DecodeString(strings.Join(strings.Fields(string(data)), ""))
}
