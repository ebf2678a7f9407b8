package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Sternrassler/openml-client/pkg/backend"
	"github.com/Sternrassler/openml-client/pkg/client"
	"github.com/Sternrassler/openml-client/pkg/pagination"
	"github.com/Sternrassler/openml-client/pkg/resource"
	"github.com/spf13/cobra"
)

// resourceArgs parses "<resource> <id>" positional arguments.
func resourceArgs(args []string) (resource.ResourceType, int, error) {
	rt, err := resource.ParseResourceType(args[0])
	if err != nil {
		return "", 0, err
	}
	id, err := strconv.Atoi(args[1])
	if err != nil {
		return "", 0, fmt.Errorf("invalid id %q", args[1])
	}
	return rt, id, nil
}

// endpoint builds a backend and returns the endpoint of rt.
func endpoint(flags *globalFlags, rt resource.ResourceType) (*backend.Backend, resource.Endpoint, error) {
	b, err := flags.newBackend()
	if err != nil {
		return nil, nil, err
	}
	return b, b.Resource(rt), nil
}

// parsePairs parses repeated key=value flags.
func parsePairs(pairs []string) (url.Values, error) {
	values := url.Values{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid pair %q: expected key=value", pair)
		}
		values.Add(key, value)
	}
	return values, nil
}

func newGetCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "get <resource> <id>",
		Short:   "Fetch a resource description",
		Example: "  openml get task 31\n  openml --api-version v2 get dataset 61",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, id, err := resourceArgs(args)
			if err != nil {
				return err
			}
			b, e, err := endpoint(flags, rt)
			if err != nil {
				return err
			}
			defer b.Close()

			resp, err := e.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeText(cmd, resp)
		},
	}
}

func newListCommand(flags *globalFlags) *cobra.Command {
	var (
		limit       int
		offset      int
		filters     []string
		all         bool
		batchSize   int
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "List resources",
		Long: `List prints one page of results. With --all every page is fetched,
--batch-size results per request, and --limit caps the total.`,
		Example: "  openml list dataset --limit 10 --filter tag=study_14\n  openml list task --all --batch-size 500",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := resource.ParseResourceType(args[0])
			if err != nil {
				return err
			}
			filterValues, err := parsePairs(filters)
			if err != nil {
				return err
			}
			b, e, err := endpoint(flags, rt)
			if err != nil {
				return err
			}
			defer b.Close()

			if all {
				pages, err := pagination.NewBatchFetcher(e, pagination.Config{
					BatchSize:      batchSize,
					MaxConcurrency: concurrency,
					MaxResults:     limit,
				}).FetchAll(cmd.Context(), resource.ListOptions{Offset: offset, Filters: filterValues})
				if err != nil {
					return err
				}
				for _, page := range pages {
					if err := writeText(cmd, page.Response); err != nil {
						return err
					}
				}
				return nil
			}

			resp, err := e.List(cmd.Context(), resource.ListOptions{
				Limit:   limit,
				Offset:  offset,
				Filters: filterValues,
			})
			if err != nil {
				return err
			}
			return writeText(cmd, resp)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of results")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of results to skip")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "filter as key=value (repeatable)")
	cmd.Flags().BoolVar(&all, "all", false, "fetch every page")
	cmd.Flags().IntVar(&batchSize, "batch-size", pagination.DefaultConfig().BatchSize, "results per request with --all")
	cmd.Flags().IntVar(&concurrency, "concurrency", pagination.DefaultConfig().MaxConcurrency, "parallel requests with --all")
	return cmd
}

func newFetchCommand(flags *globalFlags) *cobra.Command {
	var (
		params     []string
		noCache    bool
		resetCache bool
		checksum   string
	)

	cmd := &cobra.Command{
		Use:   "fetch <path>",
		Short: "GET a raw API path through the cache",
		Long: `Fetch performs a GET request for a path relative to the API root of the
preferred version (or an absolute URL) and prints the body.`,
		Example: "  openml fetch task/31\n  openml fetch data/list --param limit=5 --no-cache",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parsePairs(params)
			if err != nil {
				return err
			}
			b, err := flags.newBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			transport := b.Transport(b.Config().APIVersion)
			resp, err := transport.Get(cmd.Context(), args[0], client.GetOptions{
				Params:      query,
				UseCache:    !noCache,
				ResetCache:  resetCache,
				MD5Checksum: checksum,
			})
			if err != nil {
				return err
			}
			return writeText(cmd, resp)
		},
	}

	cmd.Flags().StringArrayVar(&params, "param", nil, "query parameter as key=value (repeatable)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the response cache")
	cmd.Flags().BoolVar(&resetCache, "reset-cache", false, "refetch and replace the cached response")
	cmd.Flags().StringVar(&checksum, "md5", "", "expected MD5 checksum of the body")
	return cmd
}

func newDeleteCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <resource> <id>",
		Short: "Delete a resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, id, err := resourceArgs(args)
			if err != nil {
				return err
			}
			b, e, err := endpoint(flags, rt)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := e.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %d\n", rt, id)
			return nil
		},
	}
}

// newTagCommand creates "tag" (add) or "untag" (remove).
func newTagCommand(flags *globalFlags, add bool) *cobra.Command {
	use, short := "tag", "Add a tag to a resource"
	if !add {
		use, short = "untag", "Remove a tag from a resource"
	}

	return &cobra.Command{
		Use:   use + " <resource> <id> <tag>",
		Short: short,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, id, err := resourceArgs(args)
			if err != nil {
				return err
			}
			b, e, err := endpoint(flags, rt)
			if err != nil {
				return err
			}
			defer b.Close()

			change := e.Tag
			if !add {
				change = e.Untag
			}
			tags, err := change(cmd.Context(), id, args[2])
			if err != nil {
				return err
			}
			for _, tag := range tags {
				fmt.Fprintln(cmd.OutOrStdout(), tag)
			}
			return nil
		},
	}
}

func newPublishCommand(flags *globalFlags) *cobra.Command {
	var files []string

	cmd := &cobra.Command{
		Use:     "publish <resource> <path>",
		Short:   "Upload a new resource",
		Example: "  openml publish flow flow --file description=flow.xml",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := resource.ParseResourceType(args[0])
			if err != nil {
				return err
			}
			pairs, err := parsePairs(files)
			if err != nil {
				return err
			}

			var uploads []client.File
			for field, paths := range pairs {
				for _, path := range paths {
					content, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("read %s: %w", path, err)
					}
					uploads = append(uploads, client.File{Field: field, Name: filepath.Base(path), Content: content})
				}
			}

			b, e, err := endpoint(flags, rt)
			if err != nil {
				return err
			}
			defer b.Close()

			id, err := e.Publish(cmd.Context(), args[1], uploads)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&files, "file", nil, "file to upload as field=path (repeatable)")
	return cmd
}

func newDownloadCommand(flags *globalFlags) *cobra.Command {
	var (
		resourceName string
		fileName     string
		encoding     string
		checksum     string
		binary       bool
	)

	cmd := &cobra.Command{
		Use:     "download <url>",
		Short:   "Download a file into the cache directory",
		Example: "  openml download https://www.openml.org/data/v1/download/61 --file-name iris.arff",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := resource.ParseResourceType(resourceName)
			if err != nil {
				return err
			}
			b, e, err := endpoint(flags, rt)
			if err != nil {
				return err
			}
			defer b.Close()

			opts := resource.DownloadOptions{
				FileName:    fileName,
				Encoding:    encoding,
				MD5Checksum: checksum,
			}
			if binary {
				opts.Handler = resource.BinaryHandler
			}

			path, err := e.Download(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&resourceName, "resource", string(resource.Dataset), "resource type the file belongs to")
	cmd.Flags().StringVar(&fileName, "file-name", resource.DefaultFileName, "name of the stored file")
	cmd.Flags().StringVar(&encoding, "encoding", "utf-8", "encoding of the stored text file")
	cmd.Flags().StringVar(&checksum, "md5", "", "expected MD5 checksum")
	cmd.Flags().BoolVar(&binary, "binary", false, "store the raw body")
	return cmd
}

// writeText prints the decoded body of resp.
func writeText(cmd *cobra.Command, resp *client.Response) error {
	text, err := resp.Text()
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}
