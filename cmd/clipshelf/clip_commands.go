package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clipshelf/internal/api"
	"clipshelf/internal/client"
	"clipshelf/internal/config"
)

func newClipsCommand(ctx *commandContext) *cobra.Command {
	clipsCmd := &cobra.Command{
		Use:     "clips",
		Aliases: []string{"clip"},
		Short:   "Browse and manage catalogued clips",
	}
	clipsCmd.AddCommand(newClipsListCommand(ctx))
	clipsCmd.AddCommand(newClipsShowCommand(ctx))
	clipsCmd.AddCommand(newClipsUploadCommand(ctx))
	clipsCmd.AddCommand(newClipsEditCommand(ctx))
	clipsCmd.AddCommand(newClipsDeleteCommand(ctx))
	clipsCmd.AddCommand(newClipsFetchCommand(ctx))
	return clipsCmd
}

func newClipsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every clip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.apiClient()
			if err != nil {
				return err
			}
			clips, err := c.List(cmd.Context())
			if err != nil {
				return wrapClientError(err, c.BaseURL())
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.ClipListResponse{Clips: clips})
			}
			out := cmd.OutOrStdout()
			if len(clips) == 0 {
				fmt.Fprintln(out, "No clips catalogued")
				return nil
			}
			rows := make([][]string, 0, len(clips))
			for _, clip := range clips {
				rows = append(rows, []string{
					strconv.FormatInt(clip.ID, 10),
					clip.Name,
					clip.UUID,
					clip.CreatedAt,
				})
			}
			fmt.Fprintln(out, renderTable([]column{
				{title: "ID", right: true},
				{title: "Name", max: 40},
				{title: "UUID"},
				{title: "Created"},
			}, rows))
			return nil
		},
	}
}

func newClipsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseClipID(args[0])
			if err != nil {
				return err
			}
			c, err := ctx.apiClient()
			if err != nil {
				return err
			}
			clip, err := c.Get(cmd.Context(), id)
			if err != nil {
				return wrapClientError(err, c.BaseURL())
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.ClipResponse{Clip: *clip})
			}
			printClip(cmd.OutOrStdout(), *clip)
			return nil
		},
	}
}

func newClipsUploadCommand(ctx *commandContext) *cobra.Command {
	var name string
	var description string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a media file as a new clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer file.Close()
			info, err := file.Stat()
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", path)
			}
			if strings.TrimSpace(name) == "" {
				name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}

			c, err := ctx.apiClient()
			if err != nil {
				return err
			}
			clip, err := c.Upload(cmd.Context(), client.Upload{
				Name:        name,
				Description: description,
				Filename:    filepath.Base(path),
				Body:        file,
				Size:        info.Size(),
			})
			if err != nil {
				return ctx.mutationError(err, c)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.ClipResponse{Clip: *clip})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded clip %d (%s)\n", clip.ID, clip.UUID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Clip name (defaults to the file name)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Clip description")
	return cmd
}

func newClipsEditCommand(ctx *commandContext) *cobra.Command {
	var name string
	var description string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a clip's name or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseClipID(args[0])
			if err != nil {
				return err
			}
			nameSet := cmd.Flags().Changed("name")
			descSet := cmd.Flags().Changed("description")
			if !nameSet && !descSet {
				return errors.New("nothing to change: pass --name and/or --description")
			}
			c, err := ctx.apiClient()
			if err != nil {
				return err
			}
			if !nameSet || !descSet {
				current, err := c.Get(cmd.Context(), id)
				if err != nil {
					return wrapClientError(err, c.BaseURL())
				}
				if !nameSet {
					name = current.Name
				}
				if !descSet {
					description = current.Description
				}
			}
			clip, err := c.Edit(cmd.Context(), id, name, description)
			if err != nil {
				return ctx.mutationError(err, c)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.ClipResponse{Clip: *clip})
			}
			printClip(cmd.OutOrStdout(), *clip)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "New clip name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New clip description")
	return cmd
}

func newClipsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a clip and its stored payload",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseClipID(args[0])
			if err != nil {
				return err
			}
			c, err := ctx.apiClient()
			if err != nil {
				return err
			}
			clip, err := c.Delete(cmd.Context(), id)
			if err != nil {
				return ctx.mutationError(err, c)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.DeleteResponse{Deleted: *clip})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted clip %d (%s)\n", clip.ID, clip.Name)
			return nil
		},
	}
}

func newClipsFetchCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "fetch <id>",
		Short: "Download a clip's payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseClipID(args[0])
			if err != nil {
				return err
			}
			c, err := ctx.apiClient()
			if err != nil {
				return err
			}
			content, err := c.Fetch(cmd.Context(), id)
			if err != nil {
				return wrapClientError(err, c.BaseURL())
			}
			defer content.Body.Close()

			if output == "" || output == "-" {
				_, err := io.Copy(cmd.OutOrStdout(), content.Body)
				return err
			}
			target, err := config.ExpandPath(output)
			if err != nil {
				return err
			}
			written, err := writeFileAtomic(target, content.Body)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", written, target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (default stdout)")
	return cmd
}

// writeFileAtomic copies r to a temp file beside path and renames it into place.
func writeFileAtomic(path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".part-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	written, err := io.Copy(tmp, r)
	if err == nil {
		err = tmp.Close()
	} else {
		tmp.Close()
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return written, nil
}

func parseClipID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid clip id %q", raw)
	}
	return id, nil
}

func printClip(out io.Writer, clip api.Clip) {
	fmt.Fprintf(out, "ID:          %d\n", clip.ID)
	fmt.Fprintf(out, "UUID:        %s\n", clip.UUID)
	fmt.Fprintf(out, "Name:        %s\n", clip.Name)
	if clip.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", clip.Description)
	}
	fmt.Fprintf(out, "Created:     %s\n", clip.CreatedAt)
	fmt.Fprintf(out, "Updated:     %s\n", clip.UpdatedAt)
}

// mutationError decorates failures of session-guarded commands.
func (c *commandContext) mutationError(err error, apiClient *client.Client) error {
	err = wrapClientError(err, apiClient.BaseURL())
	store, storeErr := c.tokenStore()
	if storeErr != nil {
		return err
	}
	saved, loadErr := store.Load()
	if loadErr != nil {
		return err
	}
	return sessionHint(err, saved)
}
