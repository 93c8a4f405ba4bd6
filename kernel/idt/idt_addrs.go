package idt

import "reflect"

// StubAddrs returns the linear addresses of the 256 assembly trampolines, in
// vector order, for use with Init.
func StubAddrs() [256]uintptr {
	var addrs [256]uintptr
	stubs := [256]func(){
		isrStub0,
		isrStub1,
		isrStub2,
		isrStub3,
		isrStub4,
		isrStub5,
		isrStub6,
		isrStub7,
		isrStub8,
		isrStub9,
		isrStub10,
		isrStub11,
		isrStub12,
		isrStub13,
		isrStub14,
		isrStub15,
		isrStub16,
		isrStub17,
		isrStub18,
		isrStub19,
		isrStub20,
		isrStub21,
		isrStub22,
		isrStub23,
		isrStub24,
		isrStub25,
		isrStub26,
		isrStub27,
		isrStub28,
		isrStub29,
		isrStub30,
		isrStub31,
		isrStub32,
		isrStub33,
		isrStub34,
		isrStub35,
		isrStub36,
		isrStub37,
		isrStub38,
		isrStub39,
		isrStub40,
		isrStub41,
		isrStub42,
		isrStub43,
		isrStub44,
		isrStub45,
		isrStub46,
		isrStub47,
		isrStub48,
		isrStub49,
		isrStub50,
		isrStub51,
		isrStub52,
		isrStub53,
		isrStub54,
		isrStub55,
		isrStub56,
		isrStub57,
		isrStub58,
		isrStub59,
		isrStub60,
		isrStub61,
		isrStub62,
		isrStub63,
		isrStub64,
		isrStub65,
		isrStub66,
		isrStub67,
		isrStub68,
		isrStub69,
		isrStub70,
		isrStub71,
		isrStub72,
		isrStub73,
		isrStub74,
		isrStub75,
		isrStub76,
		isrStub77,
		isrStub78,
		isrStub79,
		isrStub80,
		isrStub81,
		isrStub82,
		isrStub83,
		isrStub84,
		isrStub85,
		isrStub86,
		isrStub87,
		isrStub88,
		isrStub89,
		isrStub90,
		isrStub91,
		isrStub92,
		isrStub93,
		isrStub94,
		isrStub95,
		isrStub96,
		isrStub97,
		isrStub98,
		isrStub99,
		isrStub100,
		isrStub101,
		isrStub102,
		isrStub103,
		isrStub104,
		isrStub105,
		isrStub106,
		isrStub107,
		isrStub108,
		isrStub109,
		isrStub110,
		isrStub111,
		isrStub112,
		isrStub113,
		isrStub114,
		isrStub115,
		isrStub116,
		isrStub117,
		isrStub118,
		isrStub119,
		isrStub120,
		isrStub121,
		isrStub122,
		isrStub123,
		isrStub124,
		isrStub125,
		isrStub126,
		isrStub127,
		isrStub128,
		isrStub129,
		isrStub130,
		isrStub131,
		isrStub132,
		isrStub133,
		isrStub134,
		isrStub135,
		isrStub136,
		isrStub137,
		isrStub138,
		isrStub139,
		isrStub140,
		isrStub141,
		isrStub142,
		isrStub143,
		isrStub144,
		isrStub145,
		isrStub146,
		isrStub147,
		isrStub148,
		isrStub149,
		isrStub150,
		isrStub151,
		isrStub152,
		isrStub153,
		isrStub154,
		isrStub155,
		isrStub156,
		isrStub157,
		isrStub158,
		isrStub159,
		isrStub160,
		isrStub161,
		isrStub162,
		isrStub163,
		isrStub164,
		isrStub165,
		isrStub166,
		isrStub167,
		isrStub168,
		isrStub169,
		isrStub170,
		isrStub171,
		isrStub172,
		isrStub173,
		isrStub174,
		isrStub175,
		isrStub176,
		isrStub177,
		isrStub178,
		isrStub179,
		isrStub180,
		isrStub181,
		isrStub182,
		isrStub183,
		isrStub184,
		isrStub185,
		isrStub186,
		isrStub187,
		isrStub188,
		isrStub189,
		isrStub190,
		isrStub191,
		isrStub192,
		isrStub193,
		isrStub194,
		isrStub195,
		isrStub196,
		isrStub197,
		isrStub198,
		isrStub199,
		isrStub200,
		isrStub201,
		isrStub202,
		isrStub203,
		isrStub204,
		isrStub205,
		isrStub206,
		isrStub207,
		isrStub208,
		isrStub209,
		isrStub210,
		isrStub211,
		isrStub212,
		isrStub213,
		isrStub214,
		isrStub215,
		isrStub216,
		isrStub217,
		isrStub218,
		isrStub219,
		isrStub220,
		isrStub221,
		isrStub222,
		isrStub223,
		isrStub224,
		isrStub225,
		isrStub226,
		isrStub227,
		isrStub228,
		isrStub229,
		isrStub230,
		isrStub231,
		isrStub232,
		isrStub233,
		isrStub234,
		isrStub235,
		isrStub236,
		isrStub237,
		isrStub238,
		isrStub239,
		isrStub240,
		isrStub241,
		isrStub242,
		isrStub243,
		isrStub244,
		isrStub245,
		isrStub246,
		isrStub247,
		isrStub248,
		isrStub249,
		isrStub250,
		isrStub251,
		isrStub252,
		isrStub253,
		isrStub254,
		isrStub255,
	}
	for i, fn := range stubs {
		addrs[i] = reflect.ValueOf(fn).Pointer()
	}
	return addrs
}

