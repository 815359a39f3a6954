package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/markbook/markbook/internal/backup"
	"github.com/markbook/markbook/internal/config"
	"github.com/markbook/markbook/internal/events"
	"github.com/markbook/markbook/internal/folder"
	"github.com/markbook/markbook/internal/importer"
	"github.com/markbook/markbook/internal/logging"
	"github.com/markbook/markbook/internal/merge"
	"github.com/markbook/markbook/internal/storage"
	"github.com/markbook/markbook/internal/syncer"
	"github.com/markbook/markbook/internal/types"
)

// app holds the components a command works with.
type app struct {
	cfg      *config.Config
	log      *logging.Logger
	store    storage.Store
	courses  *storage.Courses
	backups  *backup.Manager
	importer *importer.Importer

	// events fans out to observers attached by long-running commands.
	events *events.Relay
}

// openApp loads config, builds the logger and opens the store.
func openApp() *app {
	cfg, err := config.Load(configFile)
	if err != nil {
		exitf("%v", err)
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		exitf("%v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		exitf("failed to create data directory: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		exitf("failed to open store: %v", err)
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		store:   store,
		courses: storage.NewCourses(store),
		events:  &events.Relay{},
	}
	a.backups = backup.NewManager(a.courses, &backup.Config{
		MaxBackups: cfg.Backup.Max,
		Logger:     log.WithComponent("backup"),
		Publisher:  a.events,
	})
	a.importer = importer.New(a.backups, log.WithComponent("import"), a.events)
	return a
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Store.Driver {
	case "redis":
		s, err := storage.OpenRedis(&storage.RedisOptions{
			Addr:      cfg.Store.Redis.Addr,
			Password:  cfg.Store.Redis.Password,
			DB:        cfg.Store.Redis.DB,
			Namespace: cfg.Store.Redis.Namespace,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return storage.Open(cfg.Store.Driver, cfg.StorePath())
	}
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warnw("Failed to close store", "error", err)
	}
	_ = a.log.Close()
}

// syncer returns the folder syncer, exiting when no folder is configured.
func (a *app) syncer() syncer.Syncer {
	if a.cfg.Folder.Path == "" {
		exitf("no folder configured (set folder.path or MARKBOOK_FOLDER_PATH)")
	}
	mirror := folder.New(a.cfg.Folder.Path, a.log.WithComponent("folder"))
	return syncer.New(a.backups, mirror, a.log.WithComponent("sync"), a.events)
}

// findCourse resolves a course by id, then by case-insensitive name.
func findCourse(ctx context.Context, courses *storage.Courses, ref string) (*types.Course, error) {
	all, err := courses.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == ref {
			return &all[i], nil
		}
	}
	key := merge.NameKey(ref)
	for i := range all {
		if merge.NameKey(all[i].Name) == key {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", storage.ErrCourseNotFound, ref)
}

// findTest resolves a test within a course by id, then by name.
func findTest(course *types.Course, ref string) (*types.CourseTest, error) {
	if t := course.FindTest(ref); t != nil {
		return t, nil
	}
	for i := range course.Tests {
		if strings.EqualFold(course.Tests[i].Name, ref) {
			return &course.Tests[i], nil
		}
	}
	return nil, fmt.Errorf("test %q not found in course %q", ref, course.Name)
}

// findStudent resolves a student within a course by id, then by name.
func findStudent(course *types.Course, ref string) (*types.CourseStudent, error) {
	if s := course.FindStudent(ref); s != nil {
		return s, nil
	}
	if s := course.FindStudentByName(ref); s != nil {
		return s, nil
	}
	return nil, fmt.Errorf("student %q not found in course %q", ref, course.Name)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		exitf("failed to encode output: %v", err)
	}
}
