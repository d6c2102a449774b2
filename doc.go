// Package btf parses and queries the BPF Type Format (BTF), the
// compact binary metadata format describing C types which compilers and
// the Linux kernel emit for eBPF.
//
// The main entry point is Btf, a parsed BTF object offering id, name
// and chained-type resolution. It is constructed from self-contained
// base BTF (e.g. /sys/kernel/btf/vmlinux) or from split BTF extending a
// base (e.g. /sys/kernel/btf/<module>):
//
//	base, err := btf.FromFile("/sys/kernel/btf/vmlinux")
//	...
//	ovs, err := btf.FromSplitFile("/sys/kernel/btf/openvswitch", base)
//
// Types resolve into one Go type per BTF kind. Walking from a function
// to the struct behind its first parameter looks like this:
//
//	types, err := base.TypesByName("kfree_skb_reason")
//	fn := types[0].(*btf.Func)
//	proto, err := base.ChainedType(fn)        // *btf.FuncProto
//	params := proto.(*btf.FuncProto).Params
//	name, err := base.TypeName(params[0])     // "skb"
//	ptr, err := base.ChainedType(params[0])   // *btf.Ptr
//	skb, err := base.ChainedType(ptr)         // *btf.Struct
//
// Two storage backends are available. Cache decodes everything at
// construction and answers queries from memory; Mmap keeps the raw
// bytes resident and decodes per query, trading query speed for a fast
// construction and a small footprint. Both answer every query
// identically; pick one with the WithBackend constructors.
//
// Collection combines a base and its split BTFs into a single view, and
// ExtractBTFFromFile pulls BTF out of (optionally compressed) ELF
// files such as kernel modules.
package btf
