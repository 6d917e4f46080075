package registry

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/anirudhraja/devwire/logger"
	"github.com/anirudhraja/devwire/schema"
)

var (
	ErrMessageNotFound  = errors.New("message not found")
	ErrEnumNotFound     = errors.New("enum not found")
	ErrDuplicateName    = errors.New("duplicate type name")
	ErrDuplicateWireID  = errors.New("duplicate wire type id")
	ErrAmbiguousName    = errors.New("ambiguous type name")
	ErrUnsupportedProto = errors.New("unsupported proto construct")
)

// Registry allows us to store the schema of the messages. We look this up
// when we need to parse or marshal a message. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	files    map[string]*schema.ProtoFile
	messages map[string]*schema.Message // fully qualified name -> message
	enums    map[string]*schema.Enum    // fully qualified name -> enum
	byWireID map[uint32]*schema.Message
}

func NewRegistry() *Registry {
	return &Registry{
		files:    make(map[string]*schema.ProtoFile),
		messages: make(map[string]*schema.Message),
		enums:    make(map[string]*schema.Enum),
		byWireID: make(map[uint32]*schema.Message),
	}
}

// LoadSchema Given a path it will recursively scan all *.proto files inside
// it and register every message and enum they declare
func (r *Registry) LoadSchema(protoPath string) error {
	info, err := os.Stat(protoPath)
	if err != nil {
		return errors.Wrap(err, "path does not exist")
	}

	var paths []string
	if !info.IsDir() {
		if !strings.HasSuffix(protoPath, ".proto") {
			return errors.Errorf("file %s is not a .proto file", protoPath)
		}
		paths = append(paths, protoPath)
	} else {
		err = filepath.WalkDir(protoPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			// Skip directories and non-proto files
			if d.IsDir() || !strings.HasSuffix(path, ".proto") {
				return nil
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return errors.Wrap(err, "failed to walk directory")
		}
	}

	sources := make(map[string][]byte, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", path)
		}
		sources[path] = content
	}
	return r.load(sources)
}

// LoadSource parses one .proto document held in memory
func (r *Registry) LoadSource(name string, src []byte) error {
	return r.load(map[string][]byte{name: src})
}

// load parses every source, resolves type references against both the new
// files and what is already registered, then registers the result.
func (r *Registry) load(sources map[string][]byte) error {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	// Pass 1: parse
	files := make([]*schema.ProtoFile, 0, len(names))
	for _, name := range names {
		file, err := parseProtoFile(name, sources[name])
		if err != nil {
			return errors.Wrapf(err, "failed to load proto file %s", name)
		}
		files = append(files, file)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Pass 2: resolve type references and wire ids
	symbols := r.symbolTable(files)
	for _, file := range files {
		if err := resolveFile(file, symbols); err != nil {
			return errors.Wrapf(err, "failed to resolve %s", file.Name)
		}
	}
	assignWireIDs(files)

	// Pass 3: stage every type, then commit only when the whole set is valid
	b := r.newBatch()
	for _, file := range files {
		if err := b.addFile(file); err != nil {
			return errors.Wrapf(err, "failed to register %s", file.Name)
		}
	}
	b.commit()

	for _, file := range files {
		r.files[file.Name] = file
		logger.Logger.Debug("loaded proto file",
			zap.String("file", file.Name),
			zap.String("package", file.Package),
			zap.Int("messages", len(file.Messages)),
			zap.Int("enums", len(file.Enums)))
	}
	return nil
}

// Register adds a hand-built message schema under its own name. Nested
// types are registered as Parent.Nested. Nothing is registered on error.
func (r *Registry) Register(msg *schema.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.newBatch()
	if err := b.addMessage(msg.Name, msg); err != nil {
		return err
	}
	b.commit()
	return nil
}

// RegisterEnum adds a hand-built enum under its own name
func (r *Registry) RegisterEnum(enum *schema.Enum) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.newBatch()
	if err := b.addEnum(enum.Name, enum); err != nil {
		return err
	}
	b.commit()
	return nil
}

// batch collects types for registration. Duplicate checks see both the
// registry and the batch itself; the registry is only touched by commit.
// Callers hold r.mu.
type batch struct {
	r        *Registry
	messages map[string]*schema.Message
	enums    map[string]*schema.Enum
	byWireID map[uint32]*schema.Message
}

func (r *Registry) newBatch() *batch {
	return &batch{
		r:        r,
		messages: make(map[string]*schema.Message),
		enums:    make(map[string]*schema.Enum),
		byWireID: make(map[uint32]*schema.Message),
	}
}

func (b *batch) addFile(file *schema.ProtoFile) error {
	for _, enum := range file.Enums {
		if err := b.addEnum(getFullName(file.Package, enum.Name), enum); err != nil {
			return err
		}
	}
	for _, msg := range file.Messages {
		if err := b.addMessage(getFullName(file.Package, msg.Name), msg); err != nil {
			return err
		}
	}
	return nil
}

func (b *batch) addMessage(fullName string, msg *schema.Message) error {
	if err := msg.Validate(); err != nil {
		return errors.Wrapf(err, "invalid message %s", fullName)
	}
	if b.hasName(fullName) {
		return errors.Wrap(ErrDuplicateName, fullName)
	}
	if id := msg.WireIdentity(); id != 0 {
		other, exists := b.r.byWireID[id]
		if !exists {
			other, exists = b.byWireID[id]
		}
		if exists && other != msg {
			return errors.Wrapf(ErrDuplicateWireID, "%d used by %s and %s", id, other.Name, fullName)
		}
		b.byWireID[id] = msg
	}
	b.messages[fullName] = msg

	for _, nested := range msg.NestedEnums {
		if err := b.addEnum(fullName+"."+nested.Name, nested); err != nil {
			return err
		}
	}
	for _, nested := range msg.NestedTypes {
		if err := b.addMessage(fullName+"."+nested.Name, nested); err != nil {
			return err
		}
	}
	return nil
}

func (b *batch) addEnum(fullName string, enum *schema.Enum) error {
	if b.hasName(fullName) {
		return errors.Wrap(ErrDuplicateName, fullName)
	}
	b.enums[fullName] = enum
	return nil
}

// hasName reports whether fullName is taken by any message or enum.
func (b *batch) hasName(fullName string) bool {
	_, m1 := b.r.messages[fullName]
	_, e1 := b.r.enums[fullName]
	_, m2 := b.messages[fullName]
	_, e2 := b.enums[fullName]
	return m1 || e1 || m2 || e2
}

func (b *batch) commit() {
	for name, msg := range b.messages {
		b.r.messages[name] = msg
	}
	for name, enum := range b.enums {
		b.r.enums[name] = enum
	}
	for id, msg := range b.byWireID {
		b.r.byWireID[id] = msg
	}
}

func getFullName(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

// GetMessage retrieves a message definition by fully qualified name, or by
// a name suffix when that is unambiguous
func (r *Registry) GetMessage(name string) (*schema.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name = strings.TrimPrefix(name, ".")
	if msg, exists := r.messages[name]; exists {
		return msg, nil
	}
	full, err := lookupSuffix(r.messages, name)
	if err != nil {
		return nil, errors.Wrap(err, "message "+name)
	}
	if full == "" {
		return nil, errors.Wrap(ErrMessageNotFound, name)
	}
	return r.messages[full], nil
}

// GetMessageByWireID retrieves the message routed to by a wire identity
func (r *Registry) GetMessageByWireID(id uint32) (*schema.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if msg, exists := r.byWireID[id]; exists {
		return msg, nil
	}
	return nil, errors.Wrapf(ErrMessageNotFound, "wire type id %d", id)
}

// GetEnum retrieves an enum definition by name
func (r *Registry) GetEnum(name string) (*schema.Enum, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name = strings.TrimPrefix(name, ".")
	if enum, exists := r.enums[name]; exists {
		return enum, nil
	}
	full, err := lookupSuffix(r.enums, name)
	if err != nil {
		return nil, errors.Wrap(err, "enum "+name)
	}
	if full == "" {
		return nil, errors.Wrap(ErrEnumNotFound, name)
	}
	return r.enums[full], nil
}

// lookupSuffix finds the single key ending in "."+name
func lookupSuffix[T any](m map[string]T, name string) (string, error) {
	var found []string
	for fullName := range m {
		if strings.HasSuffix(fullName, "."+name) {
			found = append(found, fullName)
		}
	}
	switch len(found) {
	case 0:
		return "", nil
	case 1:
		return found[0], nil
	default:
		sort.Strings(found)
		return "", errors.Wrapf(ErrAmbiguousName, "%s matches %s", name, strings.Join(found, ", "))
	}
}

// ListMessages returns all registered message names, sorted
func (r *Registry) ListMessages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.messages)
}

// ListEnums returns all registered enum names, sorted
func (r *Registry) ListEnums() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.enums)
}

// File returns a loaded proto file by the name it was loaded under
func (r *Registry) File(name string) (*schema.ProtoFile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.files[name]
	return f, ok
}

func sortedKeys[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
