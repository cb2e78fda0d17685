package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fedkv/sqlevel/pkg/kv"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s kv.Store) error {
				value, found, err := s.Get(cmd.Context(), []byte(args[0]))
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("key %q not found", args[0])
				}
				fmt.Printf("%s\n", value)
				return nil
			})
		},
	}

	putCmd = &cobra.Command{
		Use:   "put [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s kv.Store) error {
				if err := s.Put(cmd.Context(), []byte(args[0]), []byte(args[1])); err != nil {
					return err
				}
				fmt.Println("put successfully")
				return nil
			})
		},
	}

	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s kv.Store) error {
				if err := s.Delete(cmd.Context(), []byte(args[0])); err != nil {
					return err
				}
				fmt.Println("delete successfully")
				return nil
			})
		},
	}

	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks whether a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s kv.Store) error {
				found, err := s.Has(cmd.Context(), []byte(args[0]))
				if err != nil {
					return err
				}
				fmt.Printf("key=%s, found=%v\n", args[0], found)
				return nil
			})
		},
	}

	scanGT      string
	scanGTE     string
	scanLT      string
	scanLTE     string
	scanReverse bool
	scanLimit   int

	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Streams entries in key order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s kv.Store) error {
				opts := kv.IterOptions{Reverse: scanReverse}
				if scanGT != "" {
					opts.GT = []byte(scanGT)
				}
				if scanGTE != "" {
					opts.GTE = []byte(scanGTE)
				}
				if scanLT != "" {
					opts.LT = []byte(scanLT)
				}
				if scanLTE != "" {
					opts.LTE = []byte(scanLTE)
				}
				if scanLimit > 0 {
					opts.Limit = scanLimit
				}

				it, err := s.Iterator(opts)
				if err != nil {
					return err
				}
				defer it.Close()

				n := 0
				for it.Next() {
					fmt.Printf("%s\t%s\n", it.Key(), it.Value())
					n++
				}
				fmt.Printf("(%d entries)\n", n)
				return nil
			})
		},
	}

	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Deletes every entry in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s kv.Store) error {
				if err := s.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Println("cleared successfully")
				return nil
			})
		},
	}
)

func init() {
	scanCmd.Flags().StringVar(&scanGT, "gt", "", "exclusive lower bound")
	scanCmd.Flags().StringVar(&scanGTE, "gte", "", "inclusive lower bound")
	scanCmd.Flags().StringVar(&scanLT, "lt", "", "exclusive upper bound")
	scanCmd.Flags().StringVar(&scanLTE, "lte", "", "inclusive upper bound")
	scanCmd.Flags().BoolVar(&scanReverse, "reverse", false, "iterate in descending key order")
	scanCmd.Flags().IntVar(&scanLimit, "limit", 0, "maximum number of entries (0 for all)")
}
