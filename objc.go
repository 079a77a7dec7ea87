package macho

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/appsworld/go-macho/pkg/codec"
	"github.com/appsworld/go-macho/types"
	"github.com/appsworld/go-macho/types/objc"
)

var ErrObjcSectionNotFound = errors.New("missing required ObjC section")

const classRefEntrySize = 8 // sizeOfInt64: classref/superref/protoref/selref slot width in 64-bit images; refTable keys slots by f.pointerSize(), so 32-bit images use 4-byte slots

// HasObjC reports whether the image carries a __objc_imageinfo section,
// the canonical marker the Objective-C runtime itself uses to recognize
// a loaded image as containing class data.
func (f *File) HasObjC() bool {
	for _, s := range f.Segments() {
		if strings.HasPrefix(s.Name, "__DATA") {
			if sec := f.Section(s.Name, "__objc_imageinfo"); sec != nil {
				return true
			}
		}
	}
	if f.CPU == types.CPU386 {
		if sec := f.Section("__OBJC", "__image_info"); sec != nil {
			return true
		}
	}
	return false
}

// HasPlusLoadMethod reports whether the image registers any +load
// methods via the non-lazy class/category lists.
func (f *File) HasPlusLoadMethod() bool {
	for _, s := range f.Segments() {
		if strings.HasPrefix(s.Name, "__DATA") {
			if sec := f.Section(s.Name, "__objc_nlclslist"); sec != nil {
				return true
			}
			if sec := f.Section(s.Name, "__objc_nlcatlist"); sec != nil {
				return true
			}
		}
	}
	return false
}

// HasObjCMessageReferences reports whether the image carries a
// __objc_msgrefs section.
func (f *File) HasObjCMessageReferences() bool {
	for _, s := range f.Segments() {
		if strings.HasPrefix(s.Name, "__DATA") {
			for j := uint32(0); j < s.Nsect; j++ {
				if strings.EqualFold("__objc_msgrefs", f.FileTOC.Sections[j+s.Firstsect].Name) {
					return true
				}
			}
		}
	}
	return false
}

// GetObjCToc counts the entries in each of the Objective-C metadata
// tables without decoding them, for a cheap summary view.
func (f *File) GetObjCToc() objc.Toc {
	var oInfo objc.Toc
	for _, sec := range f.FileTOC.Sections {
		if strings.HasPrefix(sec.SectionHeader.Seg, "__DATA") {
			switch sec.Name {
			case "__objc_classlist":
				oInfo.ClassList = sec.Size / f.pointerSize()
			case "__objc_nlclslist":
				oInfo.NonLazyClassList = sec.Size / f.pointerSize()
			case "__objc_catlist":
				oInfo.CatList = sec.Size / f.pointerSize()
			case "__objc_nlcatlist":
				oInfo.NonLazyCatList = sec.Size / f.pointerSize()
			case "__objc_protolist":
				oInfo.ProtoList = sec.Size / f.pointerSize()
			case "__objc_classrefs":
				oInfo.ClassRefs = sec.Size / f.pointerSize()
			case "__objc_superrefs":
				oInfo.SuperRefs = sec.Size / f.pointerSize()
			case "__objc_selrefs":
				oInfo.SelRefs = sec.Size / f.pointerSize()
			}
		} else if (f.CPU == types.CPU386) && strings.EqualFold(sec.Name, "__OBJC") {
			if strings.EqualFold(sec.Name, "__message_refs") {
				oInfo.SelRefs += sec.SectionHeader.Size / 4
			} else if strings.EqualFold(sec.Name, "__class") {
				oInfo.ClassList += sec.SectionHeader.Size / 48
			} else if strings.EqualFold(sec.Name, "__protocol") {
				oInfo.ProtoList += sec.SectionHeader.Size / 20
			}
		}
	}
	return oInfo
}

// readDataSection locates the named section under a segment whose name
// has segPrefix, reads its raw bytes, and wraps them in a ByteView so
// callers decode fields with bounds-checked accessors instead of
// re-deriving their own seek/read/slice boilerplate. Returns a nil
// *types.Section (and a zero ByteView) if no matching section exists.
func (f *File) readDataSection(segPrefix, secName string) (codec.ByteView, *types.Section, error) {
	for _, s := range f.Segments() {
		if !strings.HasPrefix(s.Name, segPrefix) {
			continue
		}
		sec := f.Section(s.Name, secName)
		if sec == nil {
			continue
		}
		off, err := f.vma.GetOffset(f.vma.Convert(sec.Addr))
		if err != nil {
			return codec.ByteView{}, nil, fmt.Errorf("failed to convert vmaddr: %v", err)
		}
		f.cr.Seek(int64(off), io.SeekStart)

		dat := make([]byte, sec.Size)
		if err := binary.Read(f.cr, f.ByteOrder, dat); err != nil {
			return codec.ByteView{}, nil, fmt.Errorf("failed to read %s.%s data: %v", sec.Seg, sec.Name, err)
		}
		return codec.NewByteView(dat, f.ByteOrder), sec, nil
	}
	return codec.ByteView{}, nil, nil
}

// pointerTable decodes a section's worth of pointer-width VM addresses,
// already slid through f.vma.Convert.
func (f *File) pointerTable(view codec.ByteView) ([]uint64, error) {
	ptrSize := int(f.pointerSize())
	n := view.Len() / ptrSize
	ptrs := make([]uint64, n)
	for i := 0; i < n; i++ {
		var raw uint64
		var err error
		if ptrSize == 8 {
			raw, err = view.Uint64At(i * 8)
		} else {
			var v32 uint32
			v32, err = view.Uint32At(i * 4)
			raw = uint64(v32)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read pointer table entry %d: %v", i, err)
		}
		ptrs[i] = f.vma.Convert(raw)
	}
	return ptrs, nil
}

// GetObjCImageInfo returns the parsed __objc_imageinfo record, which
// carries the Swift ABI version and GC/retain-release flags the runtime
// consults at load time.
func (f *File) GetObjCImageInfo() (*objc.ImageInfo, error) {
	view, sec, err := f.readDataSection("__DATA", "__objc_imageinfo")
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, fmt.Errorf("macho does not contain __objc_imageinfo section: %w", ErrObjcSectionNotFound)
	}

	var imgInfo objc.ImageInfo
	if err := binary.Read(bytes.NewReader(view.Bytes()), f.ByteOrder, &imgInfo); err != nil {
		return nil, fmt.Errorf("failed to read %T: %v", imgInfo, err)
	}
	return &imgInfo, nil
}

// GetObjCClassInfo parses the class_ro_t record at vmaddr, sliding every
// embedded pointer field through the current VM address converter.
func (f *File) GetObjCClassInfo(vmaddr uint64) (*objc.ClassRO64, error) {
	var classData objc.ClassRO64

	off, err := f.vma.GetOffset(vmaddr)
	if err != nil {
		return nil, fmt.Errorf("failed to convert vmaddr: %v", err)
	}
	f.cr.Seek(int64(off), io.SeekStart)

	if err := binary.Read(f.cr, f.ByteOrder, &classData); err != nil {
		return nil, fmt.Errorf("failed to read %T: %v", classData, err)
	}

	classData.IvarLayoutVMAddr = f.vma.Convert(classData.IvarLayoutVMAddr)
	classData.NameVMAddr = f.vma.Convert(classData.NameVMAddr)
	classData.BaseMethodsVMAddr = f.vma.Convert(classData.BaseMethodsVMAddr)
	classData.BaseProtocolsVMAddr = f.vma.Convert(classData.BaseProtocolsVMAddr)
	classData.IvarsVMAddr = f.vma.Convert(classData.IvarsVMAddr)
	classData.WeakIvarLayoutVMAddr = f.vma.Convert(classData.WeakIvarLayoutVMAddr)
	classData.BasePropertiesVMAddr = f.vma.Convert(classData.BasePropertiesVMAddr)

	return &classData, nil
}

// stringTable decodes a NUL-separated pool of strings starting at a
// section's address, returning a map from string to that string's own
// address in the section (the form the class/method name tables need
// so a caller can recover which symbol a given address names).
func (f *File) stringTable(segPrefix, secName string) (map[string]uint64, error) {
	out := make(map[string]uint64)

	view, sec, err := f.readDataSection(segPrefix, secName)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return out, nil
	}

	r := bytes.NewBuffer(view.Bytes())
	for {
		s, err := r.ReadString('\x00')
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read from %s string pool: %v", secName, err)
		}
		out[strings.Trim(s, "\x00")] = sec.Addr + (sec.Size - uint64(r.Len()+len(s)))
	}
	return out, nil
}

// GetObjCClassNames returns the locally-implemented class names mapped
// to their string-table address.
func (f *File) GetObjCClassNames() (map[string]uint64, error) {
	return f.stringTable("__TEXT", "__objc_classname")
}

// GetObjCMethodNames returns the locally-implemented method names
// mapped to their string-table address.
func (f *File) GetObjCMethodNames() (map[string]uint64, error) {
	return f.stringTable("__TEXT", "__objc_methname")
}

// classPointerList reads a __DATA section of class pointers (used by
// both __objc_classlist and __objc_nlclslist) and resolves each to its
// already-parsed class, consulting and populating the file-wide class
// intern map so repeated references to the same class share one node.
func (f *File) classPointerList(secName string) ([]*objc.Class, error) {
	view, sec, err := f.readDataSection("__DATA", secName)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, nil
	}

	ptrs, err := f.pointerTable(view)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s pointers: %v", secName, err)
	}

	var classes []*objc.Class
	for _, ptr := range ptrs {
		if c, ok := f.objc[ptr]; ok {
			classes = append(classes, c)
			continue
		}
		class, err := f.GetObjCClass(ptr)
		if err != nil {
			return nil, fmt.Errorf("failed to read objc_class_t at vmaddr %#x: %v", ptr, err)
		}
		classes = append(classes, class)
		f.objc[ptr] = class
	}
	return classes, nil
}

// GetObjCClasses returns every Objective-C class implemented in the
// image, in __objc_classlist order.
func (f *File) GetObjCClasses() ([]*objc.Class, error) {
	return f.classPointerList("__objc_classlist")
}

// GetObjCNonLazyClasses returns the classes that implement +load and
// are therefore realized eagerly at image load time.
func (f *File) GetObjCNonLazyClasses() ([]*objc.Class, error) {
	return f.classPointerList("__objc_nlclslist")
}

// resolveClassOrBind resolves a class pointer to its parsed class,
// falling back to a bind-symbol-derived stub (name only) when the
// target lives in another image and can only be reached via a bound
// symbol rather than direct class data.
func (f *File) resolveClassOrBind(ptr uint64) (*objc.Class, error) {
	if c, ok := f.objc[ptr]; ok {
		return c, nil
	}
	cls, err := f.GetObjCClass(ptr)
	if err == nil {
		f.objc[ptr] = cls
		return cls, nil
	}
	if !f.HasFixups() {
		return &objc.Class{}, nil
	}
	bindName, bindErr := f.GetBindName(ptr)
	if bindErr != nil {
		return nil, fmt.Errorf("failed to read class objc_class_t at vmaddr: %#x; %v", ptr, err)
	}
	cls = &objc.Class{Name: strings.TrimPrefix(bindName, "_OBJC_CLASS_$_")}
	f.objc[ptr] = cls
	return cls, nil
}

// GetObjCClass parses the class_t record at vmaddr, including its
// superclass, metaclass, methods, ivars, properties and protocols.
func (f *File) GetObjCClass(vmaddr uint64) (*objc.Class, error) {
	if c, ok := f.objc[vmaddr]; ok {
		return c, nil
	}

	var classPtr objc.SwiftClassMetadata64
	off, err := f.vma.GetOffset(vmaddr)
	if err != nil {
		return nil, fmt.Errorf("failed to convert vmaddr: %v", err)
	}
	f.cr.Seek(int64(off), io.SeekStart)
	if err := binary.Read(f.cr, f.ByteOrder, &classPtr); err != nil {
		return nil, fmt.Errorf("failed to read %T: %v", classPtr, err)
	}

	classPtr.IsaVMAddr = f.vma.Convert(classPtr.IsaVMAddr)
	classPtr.SuperclassVMAddr = f.vma.Convert(classPtr.SuperclassVMAddr)
	classPtr.MethodCacheBuckets = f.vma.Convert(classPtr.MethodCacheBuckets)
	classPtr.MethodCacheProperties = f.vma.Convert(classPtr.MethodCacheProperties)
	classPtr.DataVMAddrAndFastFlags = f.vma.Convert(classPtr.DataVMAddrAndFastFlags)

	info, err := f.GetObjCClassInfo(classPtr.DataVMAddrAndFastFlags & objc.FAST_DATA_MASK64)
	if err != nil {
		return nil, fmt.Errorf("failed to get class info at vmaddr: %#x; %v", classPtr.DataVMAddrAndFastFlags&objc.FAST_DATA_MASK64, err)
	}

	name, err := f.GetCString(info.NameVMAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to read cstring: %v", err)
	}

	var methods []objc.Method
	if info.BaseMethodsVMAddr > 0 {
		if methods, err = f.GetObjCMethods(info.BaseMethodsVMAddr); err != nil {
			return nil, fmt.Errorf("failed to get methods at vmaddr: %#x; %v", info.BaseMethodsVMAddr, err)
		}
	}

	var prots []objc.Protocol
	if info.BaseProtocolsVMAddr > 0 {
		if prots, err = f.parseObjcProtocolList(info.BaseProtocolsVMAddr); err != nil {
			return nil, fmt.Errorf("failed to read protocols vmaddr: %v", err)
		}
	}

	var ivars []objc.Ivar
	if info.IvarsVMAddr > 0 {
		if ivars, err = f.GetObjCIvars(info.IvarsVMAddr); err != nil {
			return nil, fmt.Errorf("failed to get ivars at vmaddr: %#x; %v", info.IvarsVMAddr, err)
		}
	}

	var props []objc.Property
	if info.BasePropertiesVMAddr > 0 {
		if props, err = f.GetObjCProperties(info.BasePropertiesVMAddr); err != nil {
			return nil, fmt.Errorf("failed to get props at vmaddr: %#x; %v", info.BasePropertiesVMAddr, err)
		}
	}

	superClass := &objc.Class{}
	if classPtr.SuperclassVMAddr > 0 {
		switch {
		case info.Flags.IsRoot():
			superClass = &objc.Class{Name: "<ROOT>"}
		case info.Flags.IsMeta():
			superClass = &objc.Class{Name: "<META>"}
		default:
			superClass, err = f.resolveClassOrBind(classPtr.SuperclassVMAddr)
			if err != nil {
				return nil, err
			}
		}
	}

	isaClass := &objc.Class{}
	var cMethods []objc.Method
	if classPtr.IsaVMAddr > 0 && !info.Flags.IsMeta() {
		isaClass, err = f.resolveClassOrBind(classPtr.IsaVMAddr)
		if err != nil {
			return nil, err
		}
		if isaClass.ReadOnlyData.Flags.IsMeta() {
			cMethods = isaClass.InstanceMethods
		}
	}

	return &objc.Class{
		Name:                  name,
		SuperClass:            superClass.Name,
		Isa:                   isaClass.Name,
		InstanceMethods:       methods,
		ClassMethods:          cMethods,
		Ivars:                 ivars,
		Props:                 props,
		Prots:                 prots,
		ClassPtr:              vmaddr,
		IsaVMAddr:             classPtr.IsaVMAddr,
		SuperclassVMAddr:      classPtr.SuperclassVMAddr,
		MethodCacheBuckets:    classPtr.MethodCacheBuckets,
		MethodCacheProperties: classPtr.MethodCacheProperties,
		DataVMAddr:            classPtr.DataVMAddrAndFastFlags & objc.FAST_DATA_MASK64,
		IsSwiftLegacy:         (classPtr.DataVMAddrAndFastFlags&objc.FAST_IS_SWIFT_LEGACY == 1),
		IsSwiftStable:         (classPtr.DataVMAddrAndFastFlags&objc.FAST_IS_SWIFT_STABLE == 1),
		ReadOnlyData:          *info,
	}, nil
}

// GetObjCCategories returns every Objective-C category implemented in
// the image.
func (f *File) GetObjCCategories() ([]objc.Category, error) {
	var categories []objc.Category

	view, sec, err := f.readDataSection("__DATA", "__objc_catlist")
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, nil
	}

	ptrs, err := f.pointerTable(view)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s.%s pointers: %v", sec.Seg, sec.Name, err)
	}

	for _, ptr := range ptrs {
		cat, err := f.readObjcCategory(ptr)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *cat)
	}
	return categories, nil
}

func (f *File) readObjcCategory(ptr uint64) (*objc.Category, error) {
	var categoryPtr objc.CategoryT

	off, err := f.vma.GetOffset(ptr)
	if err != nil {
		return nil, fmt.Errorf("failed to convert vmaddr: %v", err)
	}
	f.cr.Seek(int64(off), io.SeekStart)
	if err := binary.Read(f.cr, f.ByteOrder, &categoryPtr); err != nil {
		return nil, fmt.Errorf("failed to read %T: %v", categoryPtr, err)
	}

	category := &objc.Category{VMAddr: ptr}

	categoryPtr.NameVMAddr = f.vma.Convert(categoryPtr.NameVMAddr)
	if category.Name, err = f.GetCString(categoryPtr.NameVMAddr); err != nil {
		return nil, fmt.Errorf("failed to read cstring: %v", err)
	}

	if categoryPtr.ClsVMAddr > 0 {
		categoryPtr.ClsVMAddr = f.vma.Convert(categoryPtr.ClsVMAddr)
		if category.Class, err = f.resolveClassOrBind(categoryPtr.ClsVMAddr); err != nil {
			return nil, err
		}
	}
	if categoryPtr.InstanceMethodsVMAddr > 0 {
		categoryPtr.InstanceMethodsVMAddr = f.vma.Convert(categoryPtr.InstanceMethodsVMAddr)
		if category.InstanceMethods, err = f.GetObjCMethods(categoryPtr.InstanceMethodsVMAddr); err != nil {
			return nil, fmt.Errorf("failed to get instance methods at vmaddr: %#x; %v", categoryPtr.InstanceMethodsVMAddr, err)
		}
	}
	if categoryPtr.ClassMethodsVMAddr > 0 {
		categoryPtr.ClassMethodsVMAddr = f.vma.Convert(categoryPtr.ClassMethodsVMAddr)
		if category.ClassMethods, err = f.GetObjCMethods(categoryPtr.ClassMethodsVMAddr); err != nil {
			return nil, fmt.Errorf("failed to get class methods at vmaddr: %#x; %v", categoryPtr.ClassMethodsVMAddr, err)
		}
	}
	if categoryPtr.ProtocolsVMAddr > 0 {
		categoryPtr.ProtocolsVMAddr = f.vma.Convert(categoryPtr.ProtocolsVMAddr)
		// protocol-list decoding for categories is not yet wired; the
		// pointer is preserved on categoryPtr for a caller that needs it.
	}
	if categoryPtr.InstancePropertiesVMAddr > 0 {
		categoryPtr.InstancePropertiesVMAddr = f.vma.Convert(categoryPtr.InstancePropertiesVMAddr)
		if category.Properties, err = f.GetObjCProperties(categoryPtr.InstancePropertiesVMAddr); err != nil {
			return nil, fmt.Errorf("failed to get properties at vmaddr: %#x; %v", categoryPtr.InstancePropertiesVMAddr, err)
		}
	}

	category.CategoryT = categoryPtr
	return category, nil
}

// GetCFStrings returns the constant CFString literals embedded in the
// image's __cfstring section.
func (f *File) GetCFStrings() ([]objc.CFString, error) {
	var cfstrings []objc.CFString

	for _, s := range f.Segments() {
		sec := f.Section(s.Name, "__cfstring")
		if sec == nil {
			continue
		}
		view, _, err := f.readDataSection(s.Name, "__cfstring")
		if err != nil {
			return nil, err
		}

		entrySize := binary.Size(objc.CFString64T{})
		n := int(sec.Size) / entrySize
		cfstrings = make([]objc.CFString, n)
		cfStrTypes := make([]objc.CFString64T, n)
		if err := binary.Read(bytes.NewReader(view.Bytes()), f.ByteOrder, &cfStrTypes); err != nil {
			return nil, fmt.Errorf("failed to read %T structs: %v", cfStrTypes, err)
		}

		for idx, cfstr := range cfStrTypes {
			cfstr.IsaVMAddr = f.vma.Convert(cfstr.IsaVMAddr)
			cfstr.Data = f.vma.Convert(cfstr.Data)
			cfstrings[idx].CFString64T = &cfstr
			if cfstr.Data == 0 {
				return nil, fmt.Errorf("unhandled cstring parse case where data is 0") // TODO: resolve via symbol table when data is a bound/rebased pointer instead of a direct string address
			}
			if cfstrings[idx].Name, err = f.GetCString(cfstr.Data); err != nil {
				return nil, fmt.Errorf("failed to read cstring: %v", err)
			}
			if c, ok := f.objc[cfstr.IsaVMAddr]; ok {
				cfstrings[idx].Class = c
			}
			cfstrings[idx].Address = sec.Addr + uint64(idx*entrySize)
		}
	}

	return cfstrings, nil
}

func (f *File) parseObjcProtocolList(vmaddr uint64) ([]objc.Protocol, error) {
	var protocols []objc.Protocol

	off, err := f.vma.GetOffset(f.vma.Convert(vmaddr))
	if err != nil {
		return nil, fmt.Errorf("failed to convert vmaddr: %v", err)
	}
	f.cr.Seek(int64(off), io.SeekStart)

	var protList objc.ProtocolList
	if err := binary.Read(f.cr, f.ByteOrder, &protList.Count); err != nil {
		return nil, fmt.Errorf("failed to read protocol_list_t count: %v", err)
	}
	protList.Protocols = make([]uint64, protList.Count)
	if err := binary.Read(f.cr, f.ByteOrder, &protList.Protocols); err != nil {
		return nil, fmt.Errorf("failed to read protocol_list_t prots: %v", err)
	}

	for _, protPtr := range protList.Protocols {
		prot, err := f.getObjcProtocol(f.vma.Convert(protPtr))
		if err != nil {
			return nil, err
		}
		protocols = append(protocols, *prot)
	}
	return protocols, nil
}

func (f *File) getObjcProtocol(vmaddr uint64) (*objc.Protocol, error) {
	var protoPtr objc.ProtocolT

	off, err := f.vma.GetOffset(f.vma.Convert(vmaddr))
	if err != nil {
		return nil, fmt.Errorf("failed to convert vmaddr: %v", err)
	}
	f.cr.Seek(int64(off), io.SeekStart)
	if err := binary.Read(f.cr, f.ByteOrder, &protoPtr); err != nil {
		return nil, fmt.Errorf("failed to read protocol_t: %v", err)
	}

	proto := &objc.Protocol{Ptr: vmaddr}

	if protoPtr.NameVMAddr > 0 {
		protoPtr.NameVMAddr = f.vma.Convert(protoPtr.NameVMAddr)
		if proto.Name, err = f.GetCString(protoPtr.NameVMAddr); err != nil {
			return nil, fmt.Errorf("failed to read cstring: %v", err)
		}
	}
	if protoPtr.IsaVMAddr > 0 {
		protoPtr.IsaVMAddr = f.vma.Convert(protoPtr.IsaVMAddr)
		if c, ok := f.objc[protoPtr.IsaVMAddr]; ok {
			proto.Isa = c
		}
		// Resolving an unseen Isa here would recurse back into class
		// parsing through the same protocol list, so only the intern-map
		// fast path is taken; an unseen Isa is left unresolved.
	}
	if protoPtr.ProtocolsVMAddr > 0 {
		protoPtr.ProtocolsVMAddr = f.vma.Convert(protoPtr.ProtocolsVMAddr)
		if proto.Prots, err = f.parseObjcProtocolList(protoPtr.ProtocolsVMAddr); err != nil {
			return nil, fmt.Errorf("failed to read protocols vmaddr: %v", err)
		}
	}
	if protoPtr.InstanceMethodsVMAddr > 0 {
		protoPtr.InstanceMethodsVMAddr = f.vma.Convert(protoPtr.InstanceMethodsVMAddr)
		if proto.InstanceMethods, err = f.GetObjCMethods(protoPtr.InstanceMethodsVMAddr); err != nil {
			return nil, fmt.Errorf("failed to read instance method vmaddr: %v", err)
		}
	}
	if protoPtr.OptionalInstanceMethodsVMAddr > 0 {
		protoPtr.OptionalInstanceMethodsVMAddr = f.vma.Convert(protoPtr.OptionalInstanceMethodsVMAddr)
		if proto.OptionalInstanceMethods, err = f.GetObjCMethods(protoPtr.OptionalInstanceMethodsVMAddr); err != nil {
			return nil, fmt.Errorf("failed to read optional instance method vmaddr: %v", err)
		}
	}
	if protoPtr.ClassMethodsVMAddr > 0 {
		protoPtr.ClassMethodsVMAddr = f.vma.Convert(protoPtr.ClassMethodsVMAddr)
		if proto.ClassMethods, err = f.GetObjCMethods(protoPtr.ClassMethodsVMAddr); err != nil {
			return nil, fmt.Errorf("failed to read class method vmaddr: %v", err)
		}
	}
	if protoPtr.OptionalClassMethodsVMAddr > 0 {
		protoPtr.OptionalClassMethodsVMAddr = f.vma.Convert(protoPtr.OptionalClassMethodsVMAddr)
		if proto.OptionalClassMethods, err = f.GetObjCMethods(protoPtr.OptionalClassMethodsVMAddr); err != nil {
			return nil, fmt.Errorf("failed to read optional class method vmaddr: %v", err)
		}
	}
	if protoPtr.InstancePropertiesVMAddr > 0 {
		protoPtr.InstancePropertiesVMAddr = f.vma.Convert(protoPtr.InstancePropertiesVMAddr)
		if proto.InstanceProperties, err = f.GetObjCProperties(protoPtr.InstancePropertiesVMAddr); err != nil {
			return nil, fmt.Errorf("failed to read instance property vmaddr: %v", err)
		}
	}
	if protoPtr.ExtendedMethodTypesVMAddr > 0 {
		protoPtr.ExtendedMethodTypesVMAddr = f.vma.Convert(protoPtr.ExtendedMethodTypesVMAddr)
		extOff, err := f.vma.GetOffset(protoPtr.ExtendedMethodTypesVMAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to convert vmaddr: %v", err)
		}
		f.cr.Seek(int64(extOff), io.SeekStart)

		var extMPtr uint64
		if err := binary.Read(f.cr, f.ByteOrder, &extMPtr); err != nil {
			return nil, fmt.Errorf("failed to read ExtendedMethodTypesVMAddr: %v", err)
		}
		if proto.ExtendedMethodTypes, err = f.GetCString(f.vma.Convert(extMPtr)); err != nil {
			return nil, fmt.Errorf("failed to read proto extended method types cstring: %v", err)
		}
	}
	if protoPtr.DemangledNameVMAddr > 0 {
		protoPtr.DemangledNameVMAddr = f.vma.Convert(protoPtr.DemangledNameVMAddr)
		if proto.DemangledName, err = f.GetCString(protoPtr.DemangledNameVMAddr); err != nil {
			return nil, fmt.Errorf("failed to read proto demangled name cstring: %v", err)
		}
	}

	proto.ProtocolT = protoPtr
	return proto, nil
}

// GetObjCProtocols returns every protocol declared in the image.
func (f *File) GetObjCProtocols() ([]objc.Protocol, error) {
	var protocols []objc.Protocol

	view, sec, err := f.readDataSection("__DATA", "__objc_protolist")
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, nil
	}

	ptrs, err := f.pointerTable(view)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s.%s pointers: %v", sec.Seg, sec.Name, err)
	}

	for _, ptr := range ptrs {
		proto, err := f.getObjcProtocol(ptr)
		if err != nil {
			return nil, fmt.Errorf("failed to read protocol at vmaddr %#x; %v", ptr, err)
		}
		protocols = append(protocols, *proto)
	}
	return protocols, nil
}

// GetObjCMethodList returns the flat __objc_methlist section contents,
// independent of any owning class (used by tools that want every
// defined method regardless of which class or category it belongs to).
func (f *File) GetObjCMethodList() ([]objc.Method, error) {
	var objcMethods []objc.Method

	sec := f.Section("__TEXT", "__objc_methlist")
	if sec == nil {
		return objcMethods, nil
	}

	view, _, err := f.readDataSection("__TEXT", "__objc_methlist")
	if err != nil {
		return nil, err
	}

	r := bytes.NewReader(view.Bytes())
	for {
		var methodList objc.MethodList
		err := binary.Read(r, f.ByteOrder, &methodList)
		currOffset, _ := r.Seek(0, io.SeekCurrent)
		currOffset += int64(sec.Offset)

		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read method_list_t: %v", err)
		}

		var methods []objc.Method
		if methodList.IsSmall() {
			methods, err = f.readSmallMethodsFromReader(r, methodList, currOffset)
		} else {
			methods, err = f.readBigMethods(methodList, r)
		}
		if err != nil {
			return nil, err
		}
		objcMethods = append(objcMethods, methods...)

		curr, _ := r.Seek(0, io.SeekCurrent)
		align := types.RoundUp(uint64(curr), 8)
		r.Seek(int64(align), io.SeekStart)
	}

	return objcMethods, nil
}

func (f *File) readSmallMethodsFromReader(r io.Reader, methodList objc.MethodList, currOffset int64) ([]objc.Method, error) {
	methods := make([]objc.MethodSmallT, methodList.Count)
	if err := binary.Read(r, f.ByteOrder, &methods); err != nil {
		return nil, fmt.Errorf("failed to read method_t(s) (small): %v", err)
	}

	var out []objc.Method
	for _, m := range methods {
		oMeth := objc.Method{}
		var err error
		if f.Flags.DylibInCache() {
			if f.relativeSelectorBase > 0 {
				oMeth.NameVMAddr = f.relativeSelectorBase + uint64(m.NameOffset)
			} else {
				oMeth.NameVMAddr, err = f.vma.GetVMAddress(uint64(currOffset + int64(m.NameOffset)))
				if err != nil {
					return nil, fmt.Errorf("failed to convert offset %#x to vmaddr; %v", currOffset+int64(m.NameOffset), err)
				}
			}
		}
		if oMeth.Name, err = f.GetCString(f.vma.Convert(oMeth.NameVMAddr)); err != nil {
			return nil, fmt.Errorf("failed to read method name cstring: %v", err)
		}
		if oMeth.TypesVMAddr, err = f.vma.GetVMAddress(uint64(currOffset + 4 + int64(m.TypesOffset))); err != nil {
			return nil, fmt.Errorf("failed to convert offset %#x to vmaddr; %v", currOffset+4+int64(m.TypesOffset), err)
		}
		if oMeth.Types, err = f.GetCString(f.vma.Convert(oMeth.TypesVMAddr)); err != nil {
			return nil, fmt.Errorf("failed to read method types cstring: %v", err)
		}
		if oMeth.ImpVMAddr, err = f.vma.GetVMAddress(uint64(currOffset + 8 + int64(m.ImpOffset))); err != nil {
			return nil, fmt.Errorf("failed to convert offset %#x to vmaddr; %v", currOffset+8+int64(m.ImpOffset), err)
		}
		currOffset += int64(methodList.EntSize())
		out = append(out, oMeth)
	}
	return out, nil
}

// GetObjCMethods returns the method list at vmaddr, decoding either the
// small (relative-offset) or big (absolute-pointer) record layout.
func (f *File) GetObjCMethods(vmaddr uint64) ([]objc.Method, error) {
	var methodList objc.MethodList

	off, err := f.vma.GetOffset(f.vma.Convert(vmaddr))
	if err != nil {
		return nil, fmt.Errorf("failed to convert vmaddr: %v", err)
	}
	f.cr.Seek(int64(off), io.SeekStart)
	if err := binary.Read(f.cr, f.ByteOrder, &methodList); err != nil {
		return nil, fmt.Errorf("failed to read method_list_t: %v", err)
	}

	if methodList.IsSmall() {
		return f.readSmallMethods(methodList)
	}
	return f.readBigMethods(methodList, f.cr)
}

func (f *File) readSmallMethods(methodList objc.MethodList) ([]objc.Method, error) {
	var nameVMAddr uint64
	currOffset, _ := f.cr.Seek(0, io.SeekCurrent)

	methods := make([]objc.MethodSmallT, methodList.Count)
	if err := binary.Read(f.cr, f.ByteOrder, &methods); err != nil {
		return nil, fmt.Errorf("failed to read method_t(s) (small): %v", err)
	}

	var objcMethods []objc.Method
	for _, method := range methods {
		f.cr.Seek(currOffset+int64(method.NameOffset), io.SeekStart)
		if err := binary.Read(f.cr, f.ByteOrder, &nameVMAddr); err != nil {
			return nil, fmt.Errorf("failed to read nameAddr(small): %v", err)
		}

		var err error
		if f.Flags.DylibInCache() {
			if f.relativeSelectorBase > 0 {
				nameVMAddr = f.relativeSelectorBase + uint64(method.NameOffset)
			} else {
				nameVMAddr, err = f.vma.GetVMAddress(uint64(currOffset + int64(method.NameOffset)))
				if err != nil {
					return nil, fmt.Errorf("failed to convert offset %#x to vmaddr; %v", currOffset+int64(method.NameOffset), err)
				}
			}
		}

		n, err := f.GetCString(f.vma.Convert(nameVMAddr))
		if err != nil {
			return nil, fmt.Errorf("failed to read method name cstring: %v", err)
		}

		typesVMAddr, err := f.vma.GetVMAddress(uint64(currOffset + 4 + int64(method.TypesOffset)))
		if err != nil {
			return nil, fmt.Errorf("failed to convert offset %#x to vmaddr; %v", currOffset+4+int64(method.TypesOffset), err)
		}
		t, err := f.GetCString(f.vma.Convert(typesVMAddr))
		if err != nil {
			return nil, fmt.Errorf("failed to read method types cstring: %v", err)
		}

		impVMAddr, err := f.vma.GetVMAddress(uint64(currOffset + 8 + int64(method.ImpOffset)))
		if err != nil {
			return nil, fmt.Errorf("failed to convert offset %#x to vmaddr; %v", currOffset+8+int64(method.ImpOffset), err)
		}

		currOffset += int64(methodList.EntSize())
		objcMethods = append(objcMethods, objc.Method{
			NameVMAddr:  nameVMAddr,
			TypesVMAddr: typesVMAddr,
			ImpVMAddr:   impVMAddr,
			Name:        n,
			Types:       t,
		})
	}
	return objcMethods, nil
}

func (f *File) readBigMethods(methodList objc.MethodList, r io.Reader) ([]objc.Method, error) {
	var objcMethods []objc.Method

	methods := make([]objc.MethodT, methodList.Count)
	if err := binary.Read(r, f.ByteOrder, &methods); err != nil {
		return nil, fmt.Errorf("failed to read method_t: %v", err)
	}

	for _, method := range methods {
		n, err := f.GetCString(f.vma.Convert(uint64(method.NameVMAddr)))
		if err != nil {
			return nil, fmt.Errorf("failed to read method name cstring: %v", err)
		}
		t, err := f.GetCString(f.vma.Convert(uint64(method.TypesVMAddr)))
		if err != nil {
			return nil, fmt.Errorf("failed to read method types cstring: %v", err)
		}
		if method.ImpVMAddr > 0 {
			if _, err := f.vma.GetOffset(f.vma.Convert(method.ImpVMAddr)); err != nil {
				return nil, fmt.Errorf("failed to convert vmaddr: %v", err)
			}
		}
		objcMethods = append(objcMethods, objc.Method{
			NameVMAddr:  method.NameVMAddr,
			TypesVMAddr: method.TypesVMAddr,
			ImpVMAddr:   method.ImpVMAddr,
			Name:        n,
			Types:       t,
		})
	}
	return objcMethods, nil
}

// GetObjCIvars returns the instance variables at vmaddr.
func (f *File) GetObjCIvars(vmaddr uint64) ([]objc.Ivar, error) {
	var ivarsList objc.IvarList
	var ivars []objc.Ivar

	off, err := f.vma.GetOffset(f.vma.Convert(vmaddr))
	if err != nil {
		return nil, fmt.Errorf("failed to convert vmaddr: %v", err)
	}
	f.cr.Seek(int64(off), io.SeekStart)
	if err := binary.Read(f.cr, f.ByteOrder, &ivarsList); err != nil {
		return nil, fmt.Errorf("failed to read objc_ivar_list_t: %v", err)
	}

	ivs := make([]objc.IvarT, ivarsList.Count)
	if err := binary.Read(f.cr, f.ByteOrder, &ivs); err != nil {
		return nil, fmt.Errorf("failed to read objc_ivar_list_t: %v", err)
	}

	for _, ivar := range ivs {
		ivar.Offset = f.vma.Convert(ivar.Offset)
		ivar.NameVMAddr = f.vma.Convert(ivar.NameVMAddr)
		ivar.TypesVMAddr = f.vma.Convert(ivar.TypesVMAddr)

		ivarOff, err := f.vma.GetOffset(ivar.Offset)
		if err != nil {
			return nil, fmt.Errorf("failed to convert vmaddr: %v", err)
		}
		f.cr.Seek(int64(ivarOff), io.SeekStart)

		var o uint32
		if err := binary.Read(f.cr, f.ByteOrder, &o); err != nil {
			return nil, fmt.Errorf("failed to read ivar.offset: %v", err)
		}
		n, err := f.GetCString(ivar.NameVMAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to read ivar name cstring: %v", err)
		}
		t, err := f.GetCString(ivar.TypesVMAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to read ivar types cstring: %v", err)
		}
		ivars = append(ivars, objc.Ivar{Name: n, Type: t, Offset: o, IvarT: ivar})
	}

	return ivars, nil
}

// GetObjCProperties returns the declared @property list at vmaddr.
func (f *File) GetObjCProperties(vmaddr uint64) ([]objc.Property, error) {
	var propList objc.PropertyList
	var objcProperties []objc.Property

	off, err := f.vma.GetOffset(f.vma.Convert(vmaddr))
	if err != nil {
		return nil, fmt.Errorf("failed to convert vmaddr: %v", err)
	}
	f.cr.Seek(int64(off), io.SeekStart)
	if err := binary.Read(f.cr, f.ByteOrder, &propList); err != nil {
		return nil, fmt.Errorf("failed to read objc_property_list_t: %v", err)
	}

	properties := make([]objc.PropertyT, propList.Count)
	if err := binary.Read(f.cr, f.ByteOrder, &properties); err != nil {
		return nil, fmt.Errorf("failed to read objc_property_t: %v", err)
	}

	for _, prop := range properties {
		prop.NameVMAddr = f.vma.Convert(prop.NameVMAddr)
		prop.AttributesVMAddr = f.vma.Convert(prop.AttributesVMAddr)

		name, err := f.GetCString(prop.NameVMAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to read prop name cstring: %v", err)
		}
		attrib, err := f.GetCString(prop.AttributesVMAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to read prop attributes cstring: %v", err)
		}
		objcProperties = append(objcProperties, objc.Property{PropertyT: prop, Name: name, Attributes: attrib})
	}

	return objcProperties, nil
}

// refTable decodes a __DATA section of pointer-width slots (classrefs,
// superrefs, protorefs, selrefs) into a map keyed by each slot's own
// section address, resolving each slot's target through resolve.
func refTable[T any](f *File, secName string, resolve func(ptr uint64) (T, error)) (map[uint64]T, error) {
	out := make(map[uint64]T)

	view, sec, err := f.readDataSection("__DATA", secName)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return out, nil
	}

	ptrs, err := f.pointerTable(view)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s.%s pointers: %v", sec.Seg, sec.Name, err)
	}

	for idx, ptr := range ptrs {
		v, err := resolve(ptr)
		if err != nil {
			return nil, err
		}
		out[sec.Addr+uint64(idx)*f.pointerSize()] = v
	}
	return out, nil
}

// GetObjCClassReferences returns a map of classref slot addresses to
// their resolved classes.
func (f *File) GetObjCClassReferences() (map[uint64]*objc.Class, error) {
	return refTable(f, "__objc_classrefs", f.resolveClassOrBind)
}

// GetObjCSuperReferences returns a map of superclass reference slot
// addresses to their resolved classes.
func (f *File) GetObjCSuperReferences() (map[uint64]*objc.Class, error) {
	return refTable(f, "__objc_superrefs", f.resolveClassOrBind)
}

// GetObjCProtoReferences returns a map of protocol reference/list slot
// addresses to their resolved protocols.
func (f *File) GetObjCProtoReferences() (map[uint64]*objc.Protocol, error) {
	protRefs := make(map[uint64]*objc.Protocol)
	for _, secName := range []string{"__objc_protorefs", "__objc_protolist"} {
		refs, err := refTable(f, secName, f.getObjcProtocol)
		if err != nil {
			return nil, fmt.Errorf("failed to read objc protocol refs from %s: %v", secName, err)
		}
		for addr, p := range refs {
			protRefs[addr] = p
		}
	}
	return protRefs, nil
}

// GetObjCSelectorReferences returns a map of selref slot addresses to
// their resolved selectors.
func (f *File) GetObjCSelectorReferences() (map[uint64]*objc.Selector, error) {
	return refTable(f, "__objc_selrefs", func(ptr uint64) (*objc.Selector, error) {
		name, err := f.GetCString(ptr)
		if err != nil {
			return nil, fmt.Errorf("failed to read selector name cstring: %v", err)
		}
		return &objc.Selector{VMAddr: ptr, Name: name}, nil
	})
}
