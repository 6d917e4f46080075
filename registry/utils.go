package registry

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/anirudhraja/devwire/schema"
)

// symbolTable maps fully qualified type names to their kind. It covers what
// is already registered and everything declared in files.
func (r *Registry) symbolTable(files []*schema.ProtoFile) map[string]schema.TypeKind {
	symbols := make(map[string]schema.TypeKind, len(r.messages)+len(r.enums))
	for name := range r.messages {
		symbols[name] = schema.KindMessage
	}
	for name := range r.enums {
		symbols[name] = schema.KindEnum
	}
	for _, file := range files {
		for _, enum := range file.Enums {
			symbols[getFullName(file.Package, enum.Name)] = schema.KindEnum
		}
		for _, msg := range file.Messages {
			collectSymbols(getFullName(file.Package, msg.Name), msg, symbols)
		}
	}
	return symbols
}

func collectSymbols(fullName string, msg *schema.Message, symbols map[string]schema.TypeKind) {
	symbols[fullName] = schema.KindMessage
	for _, enum := range msg.NestedEnums {
		symbols[fullName+"."+enum.Name] = schema.KindEnum
	}
	for _, nested := range msg.NestedTypes {
		collectSymbols(fullName+"."+nested.Name, nested, symbols)
	}
}

// resolveFile turns the raw type names left by the parser into fully
// qualified message or enum references
func resolveFile(file *schema.ProtoFile, symbols map[string]schema.TypeKind) error {
	for _, msg := range file.Messages {
		if err := resolveMessage(getFullName(file.Package, msg.Name), msg, symbols); err != nil {
			return err
		}
	}
	return nil
}

func resolveMessage(scope string, msg *schema.Message, symbols map[string]schema.TypeKind) error {
	for _, field := range msg.Fields {
		if field.Type.Kind != "" {
			continue
		}
		fullName, err := getReferencedType(field.Type.MessageType, scope, symbols)
		if err != nil {
			return errors.Wrapf(err, "field %s.%s", msg.Name, field.Name)
		}
		switch symbols[fullName] {
		case schema.KindEnum:
			field.Type = schema.EnumOf(fullName)
		default:
			field.Type = schema.MessageOf(fullName)
		}
	}
	for _, nested := range msg.NestedTypes {
		if err := resolveMessage(scope+"."+nested.Name, nested, symbols); err != nil {
			return err
		}
	}
	return nil
}

// assignWireIDs applies the MessageType enum convention: the value
// MessageType_<Name> = <id> routes wire identity <id> to message <Name>.
func assignWireIDs(files []*schema.ProtoFile) {
	ids := make(map[string]uint32)
	for _, file := range files {
		for _, enum := range file.Enums {
			if enum.Name != wireIDEnum {
				continue
			}
			for _, v := range enum.Values {
				name, ok := strings.CutPrefix(v.Name, wireIDEnum+"_")
				if !ok || v.Number <= 0 {
					continue
				}
				ids[name] = uint32(v.Number)
			}
		}
	}
	for _, file := range files {
		for _, msg := range file.Messages {
			if id, ok := ids[msg.Name]; ok && msg.WireTypeID == 0 {
				msg.WireTypeID = id
			}
		}
	}
}

const wireIDEnum = "MessageType"

/*
This helper function will return the entity for any referenced type ,
Be it top/file,nested or imported entities.If not found will return an error
Ref - https://github.com/protocolbuffers/protobuf/blob/b7a5772caf08d62a20fd1bca258f501fa4db022c/src/google/protobuf/descriptor.proto#L186-L191
*/
func getReferencedType(typeName, prefix string, allResolvedEntities map[string]schema.TypeKind) (string, error) {
	// check if fully qualifed prefixed by dot
	if strings.HasPrefix(typeName, ".") {
		return getFullyQualifiedType(typeName, allResolvedEntities)
	}
	// try resolving from inner entities up till the parent package
	if result, ok := splitNameAndCheck(typeName, prefix, allResolvedEntities); ok {
		return result, nil
	}
	//  check if the entity is referenced to other packages via packageName
	if _, ok := allResolvedEntities[typeName]; ok {
		return typeName, nil
	}
	return "", errors.Errorf("unable to resolve type name: %s", typeName)
}

// splitNameAndCheck splits the prefixName and tries to append the typeName and find the entity for resolution
// it also tries the find the entities defined using relative path
func splitNameAndCheck(typeName, prefix string, allResolvedEntities map[string]schema.TypeKind) (string, bool) {
	prefixSplit := strings.Split(prefix, ".")

	for len(prefixSplit) > 0 && prefixSplit[0] != "" {
		entityName := strings.Join(prefixSplit, ".") + "." + typeName
		if _, ok := allResolvedEntities[entityName]; ok {
			return entityName, true
		}
		// Omit the last element in each iteration as we go level above to outer entity
		prefixSplit = prefixSplit[:len(prefixSplit)-1]
	}
	return "", false
}

func getFullyQualifiedType(typeName string, allResolvedEntities map[string]schema.TypeKind) (string, error) {
	typeName = strings.TrimPrefix(typeName, ".")
	if _, ok := allResolvedEntities[typeName]; ok {
		return typeName, nil
	}
	return "", errors.Errorf("unable to resolve full qualified prefixed with (.) type name: %s", typeName)
}
